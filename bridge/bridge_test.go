// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/webtty/lib/clock"
	"github.com/bureau-foundation/webtty/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestBridge() (*Bridge, *clock.FakeClock, *bytes.Buffer) {
	fakeClock := clock.Fake(epoch)
	var logs bytes.Buffer
	bridge := New(Options{
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Clock:  fakeClock,
	})
	return bridge, fakeClock, &logs
}

// waitForOutput polls until the terminal shows want. Blob reads finish
// on their own goroutine.
func waitForOutput(t *testing.T, terminal *fakeTerminal, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if terminal.Output() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("terminal output = %q, want %q", terminal.Output(), want)
}

func TestUnbufferedWritesEachMessage(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	channel.deliver("hello ")
	channel.deliver([]byte("world"))

	writes := terminal.Writes()
	if len(writes) != 2 || writes[0] != "hello " || writes[1] != "world" {
		t.Fatalf("writes = %q, want [hello  world]", writes)
	}
}

func TestBufferedCoalescesWithinWindow(t *testing.T) {
	bridge, fakeClock, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, AttachOptions{Bidirectional: true, Buffered: true})

	channel.deliver("a")
	fakeClock.Advance(2 * time.Millisecond)
	channel.deliver([]byte("b"))
	fakeClock.Advance(3 * time.Millisecond)
	channel.deliver("c")
	if writes := terminal.Writes(); len(writes) != 0 {
		t.Fatalf("writes before the window closed: %q", writes)
	}

	// 10 ms after "a": the window closes.
	fakeClock.Advance(5 * time.Millisecond)
	// "d" arrives 15 ms after "a".
	fakeClock.Advance(5 * time.Millisecond)
	channel.deliver("d")
	fakeClock.Advance(FlushInterval)

	writes := terminal.Writes()
	if len(writes) != 2 || writes[0] != "abc" || writes[1] != "d" {
		t.Fatalf("writes = %q, want [abc d]", writes)
	}
}

func TestBufferedTimerIsLeadingEdge(t *testing.T) {
	bridge, fakeClock, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, AttachOptions{Buffered: true})

	for range 5 {
		channel.deliver("x")
	}
	if pending := fakeClock.PendingCount(); pending != 1 {
		t.Fatalf("%d flush timers scheduled for one burst, want 1", pending)
	}
	fakeClock.Advance(FlushInterval)
	if writes := terminal.Writes(); len(writes) != 1 || writes[0] != "xxxxx" {
		t.Fatalf("writes = %q", writes)
	}
}

func TestForwardsInputAndResize(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	terminal.input.Emit("ls\r")
	terminal.resizes.Emit(resize{rows: 40, cols: 120})

	sent := channel.Sent()
	want := []string{`["stdin","ls\r"]`, `["set_size",40,120]`}
	if len(sent) != 2 || sent[0] != want[0] || sent[1] != want[1] {
		t.Fatalf("sent = %q, want %q", sent, want)
	}
}

func TestReadOnlySessionDoesNotForwardInput(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, AttachOptions{Bidirectional: false})

	terminal.input.Emit("rm -rf /\r")
	terminal.resizes.Emit(resize{rows: 24, cols: 80})

	sent := channel.Sent()
	if len(sent) != 1 || sent[0] != `["set_size",24,80]` {
		t.Fatalf("sent = %q, want only the resize frame", sent)
	}
}

func TestAttachSendsInitialSize(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal := &sizedTerminal{rows: 50, cols: 200}
	channel := &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	sent := channel.Sent()
	if len(sent) != 1 || sent[0] != `["set_size",50,200]` {
		t.Fatalf("sent = %q, want initial set_size", sent)
	}
}

func TestSendFailureIsLogged(t *testing.T) {
	bridge, _, logs := newTestBridge()
	terminal := &fakeTerminal{}
	channel := &fakeChannel{sendErr: errors.New("channel not open")}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	terminal.input.Emit("x")

	if !strings.Contains(logs.String(), "channel not open") {
		t.Errorf("send failure not logged: %q", logs.String())
	}
	if !session.Attached() {
		t.Error("send failure detached the session")
	}
}

func TestUTF8SplitAcrossFrames(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	snowman := []byte("☃") // e2 98 83
	channel.deliver(append([]byte("a"), snowman[:1]...))
	channel.deliver(snowman[1:2])
	channel.deliver(append(snowman[2:], 'b'))

	if output := terminal.Output(); output != "a☃b" {
		t.Fatalf("output = %q, want %q", output, "a☃b")
	}
}

func TestInvalidUTF8BecomesReplacement(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	channel.deliver([]byte{'o', 0xff, 'k'})

	if output := terminal.Output(); output != "o�k" {
		t.Fatalf("output = %q, want %q", output, "o�k")
	}
}

func TestDetachFlushesIncompleteUTF8(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	snowman := []byte("☃")
	channel.deliver(append([]byte("a"), snowman[:2]...))
	if output := terminal.Output(); output != "a" {
		t.Fatalf("output before close = %q, want %q", output, "a")
	}

	channel.close()
	if session.Attached() {
		t.Fatal("session still attached after close")
	}
	if output := terminal.Output(); output != "a\uFFFD" {
		t.Fatalf("output = %q, want %q", output, "a\uFFFD")
	}
}

func TestStreamDecoderFlush(t *testing.T) {
	decoder := newStreamDecoder()
	if tail := decoder.flush(); tail != "" {
		t.Errorf("flush with nothing held = %q, want empty", tail)
	}
	if text := decoder.decode([]byte{0xe2}); text != "" {
		t.Fatalf("decode = %q, want held", text)
	}
	if tail := decoder.flush(); tail != "\uFFFD" {
		t.Errorf("flush = %q, want U+FFFD", tail)
	}
	if text := decoder.decode([]byte("ok")); text != "ok" {
		t.Errorf("decode after flush = %q, want %q", text, "ok")
	}
}

func TestBlobAndBinaryConvergeOnSameText(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	channel.deliver(strings.NewReader("héllo "))
	channel.deliver([]byte("héllo"))

	waitForOutput(t, terminal, "héllo héllo")
}

func TestBlobOrderingUnderDelayedReads(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Attach(terminal, channel, DefaultAttachOptions())

	slow := newGatedReader("1")
	fast := newGatedReader("2")
	channel.deliver(slow)
	channel.deliver(fast)
	channel.deliver("3")
	channel.deliver([]byte("4"))

	close(fast.release)
	// The fast blob and the later frames must wait for the slow blob.
	time.Sleep(20 * time.Millisecond)
	if output := terminal.Output(); output != "" {
		t.Fatalf("output before the first blob finished = %q, want empty", output)
	}

	close(slow.release)
	waitForOutput(t, terminal, "1234")
}

func TestUnsupportedFrameKeepsSession(t *testing.T) {
	bridge, _, logs := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	channel.deliver(42)
	channel.deliver("still here")

	if !session.Attached() {
		t.Fatal("unsupported frame detached the session")
	}
	if output := terminal.Output(); output != "still here" {
		t.Fatalf("output = %q", output)
	}
	if !strings.Contains(logs.String(), "unsupported frame int") {
		t.Errorf("unsupported frame not logged: %q", logs.String())
	}
}

func TestFailedBlobReadIsDropped(t *testing.T) {
	bridge, _, logs := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	broken := newGatedReader("")
	broken.err = errors.New("blob revoked")
	close(broken.release)
	channel.deliver(broken)
	channel.deliver("next")

	waitForOutput(t, terminal, "next")
	if !session.Attached() {
		t.Fatal("failed blob read detached the session")
	}
	if !strings.Contains(logs.String(), "blob revoked") {
		t.Errorf("blob failure not logged: %q", logs.String())
	}
}

func TestDetachIsIdempotentAndRemovesHandlers(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	bridge.Detach(terminal, channel)
	bridge.Detach(terminal, channel)
	session.Detach()

	if count := channel.handlerCount(); count != 0 {
		t.Errorf("%d channel handlers left after detach", count)
	}
	if count := terminal.handlerCount(); count != 0 {
		t.Errorf("%d terminal handlers left after detach", count)
	}
	channel.deliver("late")
	terminal.input.Emit("late")
	if output := terminal.Output(); output != "" {
		t.Errorf("output after detach = %q", output)
	}
	if sent := channel.Sent(); len(sent) != 0 {
		t.Errorf("sent after detach = %q", sent)
	}
	testutil.RequireClosed(t, session.Done(), time.Second, "session done")
}

func TestDetachUnknownPairIsNoop(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	bridge.Detach(terminal, channel)
	bridge.Detach(terminal, nil)

	other := &fakeTerminal{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())
	bridge.Detach(other, channel)
	if !session.Attached() {
		t.Fatal("detaching a different terminal ended the session")
	}
}

func TestDetachWithoutChannelUsesRecordedSession(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	bridge.Detach(terminal, nil)

	if session.Attached() {
		t.Fatal("Detach(terminal, nil) did not detach")
	}
	if bridge.Session(channel) != nil {
		t.Fatal("bridge still records the session")
	}
}

func TestDetachFlushesBufferedOutput(t *testing.T) {
	bridge, fakeClock, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, AttachOptions{Buffered: true})

	channel.deliver("pending")
	session.Detach()

	if writes := terminal.Writes(); len(writes) != 1 || writes[0] != "pending" {
		t.Fatalf("writes = %q, want buffered text flushed on detach", writes)
	}
	if fakeClock.PendingCount() != 0 {
		t.Fatal("flush timer still pending after detach")
	}
	fakeClock.Advance(FlushInterval)
	if writes := terminal.Writes(); len(writes) != 1 {
		t.Fatalf("writes after detach = %q", writes)
	}
}

func TestAutoDetachOnClose(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	channel.close()

	testutil.RequireClosed(t, session.Done(), time.Second, "session done after close")
	if channel.handlerCount() != 0 || terminal.handlerCount() != 0 {
		t.Fatal("handlers left after close")
	}
}

func TestAutoDetachOnError(t *testing.T) {
	bridge, _, logs := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	channel.fail()

	testutil.RequireClosed(t, session.Done(), time.Second, "session done after error")
	if !strings.Contains(logs.String(), "association closed") {
		t.Errorf("channel error not logged: %q", logs.String())
	}
}

func TestLateBlobAfterDetachIsDiscarded(t *testing.T) {
	bridge, _, _ := newTestBridge()
	terminal, channel := &fakeTerminal{}, &fakeChannel{}
	session := bridge.Attach(terminal, channel, DefaultAttachOptions())

	blob := newGatedReader("too late")
	channel.deliver(blob)
	session.Detach()
	close(blob.release)

	time.Sleep(20 * time.Millisecond)
	if output := terminal.Output(); output != "" {
		t.Fatalf("output = %q, want nothing after detach", output)
	}
}

func TestReattachSameChannelReplacesSession(t *testing.T) {
	bridge, _, _ := newTestBridge()
	first, second := &fakeTerminal{}, &fakeTerminal{}
	channel := &fakeChannel{}

	old := bridge.Attach(first, channel, DefaultAttachOptions())
	replacement := bridge.Attach(second, channel, DefaultAttachOptions())

	if old.Attached() {
		t.Fatal("first session still attached")
	}
	channel.deliver("x")
	if first.Output() != "" || second.Output() != "x" {
		t.Fatalf("first = %q, second = %q", first.Output(), second.Output())
	}
	if bridge.Session(channel) != replacement {
		t.Fatal("bridge does not record the replacement session")
	}
	if count := channel.messages.Len(); count != 1 {
		t.Fatalf("%d message handlers on the channel, want 1", count)
	}
}
