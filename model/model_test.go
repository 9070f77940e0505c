package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedAndDefaultReplies(t *testing.T) {
	m := NewMockModel("test")
	m.AddResponse("hello", "hi there")

	got, err := m.Generate(context.Background(), Request{Input: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)

	got, err = m.Generate(context.Background(), Request{Input: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, "Mock reply to: unknown", got)

	assert.Equal(t, 2, m.Calls())
}

func TestMockModel_InstructionsFallback(t *testing.T) {
	m := NewMockModel("test")
	m.AddResponse("analyst", "A relation: friend of B")

	got, err := m.Generate(context.Background(), Request{Instructions: "analyst", Input: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "A relation: friend of B", got)
}

func TestMockModel_FailWith(t *testing.T) {
	m := NewMockModel("test")
	m.FailWith(errors.New("backend down"))

	_, err := m.Generate(context.Background(), Request{Input: "x"})
	assert.Error(t, err)
}

func TestMockModel_Stream(t *testing.T) {
	m := NewMockModel("test")
	m.AddResponse("hi", "abc")

	chunks, errCh := m.GenerateStream(context.Background(), Request{Input: "hi"})

	var got string
	for c := range chunks {
		got += c.Text
	}
	assert.Equal(t, "abc", got)
	assert.NoError(t, <-errCh)
}

func TestMockModel_CancelledContext(t *testing.T) {
	m := NewMockModel("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, Request{Input: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
