package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/ir"
)

func TestBus_OrderedFanOut(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(ev Event) { got = append(got, "a:"+ev.HoleID) })
	unsub := bus.Subscribe(func(ev Event) { got = append(got, "b:"+ev.HoleID) })

	bus.Publish(Event{Seq: 1, HoleID: "d"}, Event{Seq: 2, HoleID: "c"})
	assert.Equal(t, []string{"a:d", "b:d", "a:c", "b:c"}, got)

	unsub()
	got = nil
	bus.Publish(Event{Seq: 3, HoleID: "x"})
	assert.Equal(t, []string{"a:x"}, got)
}

func TestRecorder(t *testing.T) {
	bus := NewBus()
	rec := &Recorder{}
	bus.Subscribe(rec.Handle)
	bus.Publish(Event{Seq: 1, HoleID: "a", Status: ir.StatusFilled})

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "#1 a Filled", evs[0].String())
}

func TestSink_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)
	sink.Handle(Event{Seq: 1, HoleID: "d", Action: ir.ActionFill, Status: ir.StatusFilled, Value: "4"})
	sink.Handle(Event{Seq: 2, HoleID: "c", Action: ir.ActionFill, Status: ir.StatusFilled, Value: "5", AutoFilled: true})
	require.NoError(t, sink.Err())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var back Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &back))
	assert.Equal(t, "c", back.HoleID)
	assert.True(t, back.AutoFilled)
	assert.Equal(t, ir.StatusFilled, back.Status)
	assert.NotContains(t, lines[0], "auto_filled")
}

type brokenWriter struct{ writes int }

func (w *brokenWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errors.New("closed")
}

func TestSink_StopsAfterError(t *testing.T) {
	w := &brokenWriter{}
	sink := NewSink(w)
	sink.Handle(Event{Seq: 1})
	sink.Handle(Event{Seq: 2})
	assert.Error(t, sink.Err())
	assert.Equal(t, 1, w.writes)
}
