package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

type stubPort struct {
	answer domain.Answer
	err    error
}

func (s *stubPort) Answer(context.Context, string, string, int) (domain.Answer, error) {
	return s.answer, s.err
}

func pressEnter(m Model, text string) (Model, tea.Cmd) {
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestEnterDispatchesPendingEntry(t *testing.T) {
	m := New(&stubPort{answer: domain.Answer{Text: "hi"}}, "ns")

	m, cmd := pressEnter(m, "what is up?")
	require.NotNil(t, cmd)
	require.Len(t, m.entries, 1)
	assert.Equal(t, "what is up?", m.entries[0].question)
	assert.Equal(t, entryPending, m.entries[0].state)
	assert.Empty(t, m.input.Value())
}

func TestBlankInputDoesNothing(t *testing.T) {
	m := New(&stubPort{}, "ns")
	m, cmd := pressEnter(m, "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.entries)
}

func TestAnswerMsgCompletesEntry(t *testing.T) {
	port := &stubPort{answer: domain.Answer{Text: "the answer"}}
	m := New(port, "ns")
	m, cmd := pressEnter(m, "question")
	require.NotNil(t, cmd)

	msg := cmd()
	ans, ok := msg.(answerMsg)
	require.True(t, ok)

	next, _ := m.Update(ans)
	m = next.(Model)
	assert.Equal(t, entryComplete, m.entries[0].state)
	assert.Equal(t, "the answer", m.entries[0].answer.Text)
}

func TestAnswerErrMsgFailsEntry(t *testing.T) {
	port := &stubPort{err: errors.New("model unavailable")}
	m := New(port, "ns")
	m, cmd := pressEnter(m, "question")
	require.NotNil(t, cmd)

	msg := cmd()
	fail, ok := msg.(answerErrMsg)
	require.True(t, ok)

	next, _ := m.Update(fail)
	m = next.(Model)
	assert.Equal(t, entryFailed, m.entries[0].state)
	assert.Contains(t, m.status, "model unavailable")
}

func TestRenderSourcesDeduplicates(t *testing.T) {
	records := []domain.ScoredRecord{
		{VectorRecord: domain.VectorRecord{ID: "a", Metadata: map[string]string{domain.MetaSource: "doc.md"}}, Score: 0.9},
		{VectorRecord: domain.VectorRecord{ID: "b", Metadata: map[string]string{domain.MetaSource: "doc.md"}}, Score: 0.8},
		{VectorRecord: domain.VectorRecord{ID: "c", Metadata: map[string]string{domain.MetaSource: "other.md"}}, Score: 0.7},
	}
	out := renderSources(records)
	assert.Contains(t, out, "doc.md (0.90)")
	assert.Contains(t, out, "other.md (0.70)")
	assert.Equal(t, 1, strings.Count(out, "doc.md"))
}
