// Package models defines the core domain models for Habitly.
//
// # Models
//
//   - Habit: a shared daily habit with an owner, a participant set and an invite code
//   - StreakRecord: one participant's consecutive-day streak for one habit
//   - User: the identity projection carried by an access token
//
// # Design Principles
//
//  1. Relationships use ID strings, never pointers between models.
//  2. Calendar days are civil.Date values, persisted as YYYY-MM-DD text.
//  3. Display fields copied onto a StreakRecord are cosmetic. Streak logic,
//     equality and ranking only ever look at the logical fields.
package models
