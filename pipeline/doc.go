// Package pipeline drives the three-stage discovery conversation: an
// initial analyst pass over the query and entity context, a round-robin
// group discussion among the specialist roles, and a closing summary
// turn. Every session write goes through the store's token-guarded
// commit path so a superseded or cancelled run can never corrupt the
// session that replaced it.
package pipeline
