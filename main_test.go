package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard"
	logtest "github.com/sirupsen/logrus/hooks/test"
	. "github.com/smartystreets/goconvey/convey"
)

// benchOutput reports itself as hardware so arming holds are honoured.
type benchOutput struct {
	closed int
}

func (b *benchOutput) SetAngle(channel int, angle float64) {}
func (b *benchOutput) SetDuty(channel int, duty uint16)    {}
func (b *benchOutput) Hardware() bool                      { return true }
func (b *benchOutput) Close() error {
	b.closed++
	return nil
}

func TestBringUp(t *testing.T) {
	config := onboard.DefaultConfig()

	Convey("an interrupt during arming stops every motor", t, func() {
		bench := new(benchOutput)
		trace := onboard.NewTraceOutput(bench, 0)
		vehicle := onboard.NewVehicle(config, trace, true)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		start := time.Now()
		err := bringUp(ctx, vehicle)
		So(err, ShouldEqual, context.Canceled)
		So(time.Since(start), ShouldBeLessThan, time.Second)

		So(bench.closed, ShouldEqual, 1)
		for _, id := range config.MotorIDs() {
			writes := trace.Writes(config.Motors[id].Channel)
			last := writes[len(writes)-1]
			So(last.Raw, ShouldBeTrue)
			So(last.Duty, ShouldEqual, 0)
		}

		_, err = vehicle.Command("1", "forward")
		So(err, ShouldEqual, onboard.ErrClosed)
	})

	Convey("a completed arming leaves the vehicle running", t, func() {
		config := config
		config.Arming = onboard.ArmingConfig{}
		bench := new(benchOutput)
		vehicle := onboard.NewVehicle(config, onboard.NewTraceOutput(bench, 0), true)
		defer vehicle.Close()

		So(bringUp(context.Background(), vehicle), ShouldBeNil)
		So(bench.closed, ShouldEqual, 0)
		So(vehicle.Angle("1"), ShouldEqual, 120)
	})
}

func TestStopServer(t *testing.T) {
	Convey("a request that outlives the drain timeout is reported", t, func() {
		hook := logtest.NewGlobal()
		defer hook.Reset()

		entered := make(chan struct{})
		release := make(chan struct{})
		defer close(release)

		server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-release
		})}
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		go server.Serve(listener)

		go http.Get("http://" + listener.Addr().String())
		<-entered

		err = stopServer(server, 20*time.Millisecond)
		So(err, ShouldEqual, context.DeadlineExceeded)
		So(hook.LastEntry(), ShouldNotBeNil)
		So(hook.LastEntry().Message, ShouldEqual, "HTTP server did not shut down cleanly")
	})

	Convey("an idle server drains cleanly", t, func() {
		server := &http.Server{Handler: http.NotFoundHandler()}
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		go server.Serve(listener)

		So(stopServer(server, time.Second), ShouldBeNil)
	})
}
