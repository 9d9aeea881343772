package log

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	idx := 3
	unicast := uint16(0x0005)
	netIdx := uint16(0x0001)
	return Event{
		Timestamp: time.Now().UTC(),
		Category:  CategoryNode,
		Op:        OpAdd,
		NodeIndex: &idx,
		Unicast:   &unicast,
		NetIdx:    &netIdx,
		Detail:    "hallway sensor",
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ev := sampleEvent()

	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, ev.Category, got.Category)
	assert.Equal(t, ev.Op, got.Op)
	require.NotNil(t, got.NodeIndex)
	assert.Equal(t, 3, *got.NodeIndex)
	require.NotNil(t, got.Unicast)
	assert.Equal(t, uint16(0x0005), *got.Unicast)
	assert.Nil(t, got.AppIdx)
	assert.Equal(t, "hallway sensor", got.Detail)
	assert.WithinDuration(t, ev.Timestamp, got.Timestamp, time.Microsecond)
}

func TestDecodeEvent_Garbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xFF, 0x00, 0x13})
	assert.Error(t, err)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "NODE", CategoryNode.String())
	assert.Equal(t, "NETKEY", CategoryNetKey.String())
	assert.Equal(t, "APPKEY", CategoryAppKey.String())
	assert.Equal(t, "BINDING", CategoryBinding.String())
	assert.Equal(t, "FASTPROV", CategoryFastProv.String())
	assert.Equal(t, "UNKNOWN", Category(99).String())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "ADD", OpAdd.String())
	assert.Equal(t, "CASCADE", OpCascade.String())
	assert.Equal(t, "BOOTSTRAP", OpBootstrap.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Op(99).String())
}

// --- file logger ---

func TestFileLogger_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	l, err := NewFileLogger(path)
	require.NoError(t, err)

	l.Log(sampleEvent())
	l.Log(Event{Timestamp: time.Now(), Category: CategoryNetKey, Op: OpDelete})
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := NewDecoder(f)
	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, CategoryNode, events[0].Category)
	assert.Equal(t, OpDelete, events[1].Op)
}

func TestFileLogger_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	l, err := NewFileLogger(path)
	require.NoError(t, err)
	l.Log(sampleEvent())
	require.NoError(t, l.Close())

	l, err = NewFileLogger(path)
	require.NoError(t, err)
	l.Log(sampleEvent())
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := NewDecoder(f)
	count := 0
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	l, err := NewFileLogger(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "double close is fine")

	l.Log(sampleEvent()) // must not panic
}

func TestFileLogger_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	l, err := NewFileLogger(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.Log(sampleEvent())
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())
}

// --- adapters ---

type countingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *countingLogger) Log(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func TestMultiLogger(t *testing.T) {
	a := &countingLogger{}
	b := &countingLogger{}

	m := NewMultiLogger(a, b, NoopLogger{})
	m.Log(sampleEvent())

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(logger).Log(sampleEvent())

	out := buf.String()
	assert.Contains(t, out, "category=NODE")
	assert.Contains(t, out, "op=ADD")
	assert.Contains(t, out, "node_index=3")
	assert.Contains(t, out, "detail=\"hallway sensor\"")
}

func TestSlogAdapter_ErrorsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ev := Event{Timestamp: time.Now(), Category: CategoryAppKey, Op: OpAdd, Err: "store full"}
	NewSlogAdapter(logger).Log(ev)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "store full")
}
