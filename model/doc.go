// Package model abstracts the external text-generation service driven by
// the pipeline. Providers live in subpackages (openai, anthropic); the
// pipeline only sees the Model interface and treats replies as opaque
// text.
package model
