// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - Group: a set of members sharing expenses in one currency
//   - Participant: a group member, identified by an opaque ID
//   - Expense: one payment made by a member and split among participants
//   - SplitPolicy: how an expense total is divided (equal, exact, percent, shares)
//   - Transfer: one proposed payment that reduces outstanding balances
//   - SettlementRecord: a Transfer plus its paid/pending/undone state
//   - Activity: an append-only history entry
//
// # Design Principles
//
//  1. **Exact money**: every amount is a money.Money in integer minor units
//  2. **Derived balances**: balances and transfers are never stored, they are
//     recomputed from the full expense set
//  3. **Avoid circular references**: use ID strings instead of pointers for relationships
//  4. **Identity by ID**: participant names and emails are for display only
package models
