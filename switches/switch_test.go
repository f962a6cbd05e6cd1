package switches

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CodedInternet/rovcontrol/comms"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeReader struct {
	levels map[string]Levels
	err    error
}

func (f *fakeReader) Levels() (map[string]Levels, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]Levels, len(f.levels))
	for id, l := range f.levels {
		out[id] = l
	}
	return out, nil
}

type sent struct {
	motor, action string
}

type fakeSender struct {
	lock sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) Motor(ctx context.Context, id, action string) (comms.CommandResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = append(f.sent, sent{id, action})
	return comms.CommandResponse{Status: comms.STATUS_ACCEPTED}, f.err
}

func (f *fakeSender) count() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.sent)
}

var (
	up     = Levels{Up: 0, Down: 1}
	down   = Levels{Up: 1, Down: 0}
	center = Levels{Up: 1, Down: 1}
)

func TestClassify(t *testing.T) {
	Convey("switch positions come from two active low inputs", t, func() {
		So(Classify(0, 1), ShouldEqual, POSITION_UP)
		So(Classify(1, 0), ShouldEqual, POSITION_DOWN)
		So(Classify(1, 1), ShouldEqual, POSITION_CENTER)
		So(Classify(0, 0), ShouldEqual, POSITION_CENTER)
	})

	Convey("positions map onto motor actions", t, func() {
		So(POSITION_UP.Action(), ShouldEqual, "forward")
		So(POSITION_DOWN.Action(), ShouldEqual, "reverse")
		So(POSITION_CENTER.Action(), ShouldEqual, "stop")
	})

	Convey("the default wiring covers all four motors on distinct pins", t, func() {
		pins := DefaultPins()
		So(len(pins), ShouldEqual, 4)
		So(pins["1"], ShouldResemble, Pins{27, 22})

		used := map[int]bool{}
		for _, p := range pins {
			So(used[p.Up], ShouldBeFalse)
			So(used[p.Down], ShouldBeFalse)
			used[p.Up], used[p.Down] = true, true
		}
	})
}

func TestPoller(t *testing.T) {
	Convey("a poller over two switches", t, func() {
		reader := &fakeReader{levels: map[string]Levels{"1": center, "2": center}}
		sender := new(fakeSender)
		poller := NewPoller(reader, sender, 20*time.Millisecond, time.Millisecond)

		clock := time.Unix(1000, 0)
		poller.now = func() time.Time { return clock }
		ctx := context.Background()

		So(poller.Poll(ctx), ShouldBeNil)

		Convey("the first poll reports every switch", func() {
			So(sender.sent, ShouldResemble, []sent{{"1", "stop"}, {"2", "stop"}})
		})

		Convey("an unchanged switch is not resent", func() {
			clock = clock.Add(time.Second)
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.count(), ShouldEqual, 2)
		})

		Convey("a change after the debounce is forwarded", func() {
			clock = clock.Add(time.Second)
			reader.levels["1"] = up
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.sent[2], ShouldResemble, sent{"1", "forward"})

			clock = clock.Add(time.Second)
			reader.levels["2"] = down
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.sent[3], ShouldResemble, sent{"2", "reverse"})
		})

		Convey("a change inside the debounce is held back until it has elapsed", func() {
			clock = clock.Add(time.Second)
			reader.levels["1"] = up
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.count(), ShouldEqual, 3)

			clock = clock.Add(5 * time.Millisecond)
			reader.levels["1"] = down
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.count(), ShouldEqual, 3)

			clock = clock.Add(20 * time.Millisecond)
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.count(), ShouldEqual, 4)
			So(sender.sent[3], ShouldResemble, sent{"1", "reverse"})
		})

		Convey("a failed send still counts as forwarded", func() {
			sender.err = errors.New("connection refused")
			clock = clock.Add(time.Second)
			reader.levels["1"] = up
			So(poller.Poll(ctx), ShouldBeNil)

			clock = clock.Add(time.Second)
			So(poller.Poll(ctx), ShouldBeNil)
			So(sender.count(), ShouldEqual, 3)
		})

		Convey("read errors are returned", func() {
			reader.err = errors.New("line busy")
			So(poller.Poll(ctx), ShouldNotBeNil)
			So(sender.count(), ShouldEqual, 2)
		})
	})

	Convey("run keeps polling until cancelled", t, func() {
		reader := &fakeReader{err: errors.New("line busy")}
		sender := new(fakeSender)
		poller := NewPoller(reader, sender, DEFAULT_DEBOUNCE, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		done := make(chan struct{})
		go func() {
			poller.Run(ctx)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
		So(sender.count(), ShouldEqual, 0)
	})
}
