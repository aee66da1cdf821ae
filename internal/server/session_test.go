package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/patient-docs/internal/render"
)

func TestSession_BusyFlag(t *testing.T) {
	s := NewSessionStore().New()

	assert.True(t, s.TryBegin())
	assert.True(t, s.Busy())
	assert.False(t, s.TryBegin())
	s.End()
	assert.False(t, s.Busy())
	assert.True(t, s.TryBegin())
}

func TestSession_LogoutClearsState(t *testing.T) {
	s := NewSessionStore().New()
	s.SetAuthenticated(true)
	s.SetLastText("note")
	s.SetDocument(&render.Document{Filename: "a.docx"})

	s.SetAuthenticated(false)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.LastText())
	_, ok := s.Document()
	assert.False(t, ok)
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore()
	s := store.New()

	assert.Same(t, s, store.Get(s.ID))
	store.Delete(s.ID)
	assert.Nil(t, store.Get(s.ID))
}
