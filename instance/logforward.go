package instance

import (
	"context"
	"time"

	"github.com/hpcmsg/muscore/cmn/nlog"
	"github.com/hpcmsg/muscore/manager"
	"github.com/hpcmsg/muscore/mmpclient"
)

// logForwarder mirrors WARNING+ nlog lines to the manager's log sink
// (SPEC_FULL.md §4's supplemented submit_log_message forwarding),
// grounded on the teacher's non-blocking stats-reporting channel shape
// (stats runner push queues): a bounded channel plus one drain goroutine,
// so a slow or unreachable manager stalls log forwarding, never the
// instance's own nlog call sites.
type logForwarder struct {
	instanceID string
	mgr        *mmpclient.Client
	records    chan manager.LogRecord
	done       chan struct{}
}

const logForwarderQueueLen = 256

func newLogForwarder(instanceID string, mgr *mmpclient.Client) *logForwarder {
	f := &logForwarder{
		instanceID: instanceID,
		mgr:        mgr,
		records:    make(chan manager.LogRecord, logForwarderQueueLen),
		done:       make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *logForwarder) run() {
	for rec := range f.records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := f.mgr.SubmitLogMessage(ctx, rec); err != nil {
			nlog.Infof("log forwarder: submit_log_message: %v", err)
		}
		cancel()
	}
	close(f.done)
}

func (f *logForwarder) hook(level, text string) {
	rec := manager.LogRecord{
		InstanceID:       f.instanceID,
		TimestampISO8601: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:            manager.LogLevel(level),
		Text:             text,
	}
	select {
	case f.records <- rec:
	default:
		// Queue full: the manager is slow or unreachable. Dropping here
		// (rather than blocking the nlog call site) matches spec.md §1's
		// treatment of log shipping as a best-effort external concern.
	}
}

// stop drains the queue and waits for the forwarder goroutine to exit.
func (f *logForwarder) stop() {
	close(f.records)
	<-f.done
}

// EnableLogForwarding installs the package-level nlog hook that mirrors
// every WARNING/ERROR line to the manager as instanceID. Call its
// returned stop function during shutdown, before nlog.SetHook(nil) is
// needed again (e.g. in tests that construct multiple instances in one
// process).
func EnableLogForwarding(instanceID string, mgr *mmpclient.Client) (stop func()) {
	f := newLogForwarder(instanceID, mgr)
	nlog.SetHook(f.hook)
	return func() {
		nlog.SetHook(nil)
		f.stop()
	}
}
