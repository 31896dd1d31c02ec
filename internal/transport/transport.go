// Package transport deploys the scrcpy server jar to a device and
// establishes the raw sockets the handshaker reads from.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/avast/retry-go/v4"
	adb "github.com/basiooo/goadb"
	"github.com/pkg/errors"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/logging"
)

// ServerJarPath is the fixed on-device path the server jar is pushed to.
const ServerJarPath = "/data/local/tmp/scrcpy-server.jar"

// ServerArgs are the named arguments forwarded to the server process,
// every field corresponding to a server-visible `key=value` argv entry.
type ServerArgs struct {
	ServerVersion string
	SCIDHex       string
	LogLevel      string
	VideoEnabled  bool
	AudioEnabled  bool
	ControlEnabled bool
	VideoCodec    string
	AudioCodec    string
	MaxSize       int
	VideoBitRate  int
	MaxFPS        int
	TunnelForward bool
	Cleanup       bool
}

// argv renders the server args in `app_process` command-line form.
func (a ServerArgs) argv() []string {
	boolStr := func(b bool) string {
		if b {
			return "true"
		}
		return "false"
	}
	args := []string{
		"CLASSPATH=" + ServerJarPath,
		"app_process", "/", "com.genymobile.scrcpy.Server",
		a.ServerVersion,
		"scid=" + a.SCIDHex,
		"log_level=" + a.LogLevel,
		"video=" + boolStr(a.VideoEnabled),
		"audio=" + boolStr(a.AudioEnabled),
		"control=" + boolStr(a.ControlEnabled),
		"tunnel_forward=" + boolStr(a.TunnelForward),
		"cleanup=" + boolStr(a.Cleanup),
	}
	if a.VideoEnabled && a.VideoCodec != "" {
		args = append(args, "video_codec="+a.VideoCodec)
	}
	if a.AudioEnabled && a.AudioCodec != "" {
		args = append(args, "audio_codec="+a.AudioCodec)
	}
	if a.MaxSize > 0 {
		args = append(args, fmt.Sprintf("max_size=%d", a.MaxSize))
	}
	if a.VideoBitRate > 0 {
		args = append(args, fmt.Sprintf("video_bit_rate=%d", a.VideoBitRate))
	}
	if a.MaxFPS > 0 {
		args = append(args, fmt.Sprintf("max_fps=%d", a.MaxFPS))
	}
	return args
}

// ServerProcess is a handle on the spawned on-device server process.
type ServerProcess struct {
	cmd *exec.Cmd
}

// Wait blocks until the server process's adb shell invocation returns,
// which happens when the device-side process exits or the shell
// connection drops.
func (p *ServerProcess) Wait() error {
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Wait()
}

// Kill terminates the local adb shell invocation. It does not guarantee
// the device-side Java process has exited; callers also issue a
// best-effort `pkill` against the device.
func (p *ServerProcess) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Transport is everything the session coordinator needs from the
// device link: deploying the server jar, opening the reverse tunnel,
// and spawning the server process.
type Transport interface {
	// Push copies the server jar to the device, retrying transient
	// adb failures.
	Push(ctx context.Context, localJarPath string) error
	// OpenTunnel sets up `adb reverse localabstract:scrcpy_<scid> tcp:<port>`
	// so the device-side server can dial back to a listener on this host.
	OpenTunnel(ctx context.Context, scidHex string, port int) error
	// CloseTunnel removes a previously opened reverse tunnel.
	CloseTunnel(ctx context.Context, scidHex string) error
	// SpawnServer starts the server process on the device and returns
	// a handle once the process has been launched (not once it is
	// ready; readiness is observed via the handshake).
	SpawnServer(ctx context.Context, args ServerArgs) (*ServerProcess, error)
	// KillServer best-effort terminates any running server process on
	// the device, used during teardown and before a fresh spawn.
	KillServer(ctx context.Context)
}

// AdbTransport implements Transport over the `adb` CLI for data-plane
// operations (push, reverse, shell) and a goadb client for device
// presence.
type AdbTransport struct {
	adbPath      string
	deviceSerial string
	client       *adb.Adb
	log          *slog.Logger
}

// NewAdbTransport builds a transport bound to one device serial. adbPath
// may be empty, in which case "adb" is resolved from PATH.
func NewAdbTransport(deviceSerial, adbPath string) (*AdbTransport, error) {
	if adbPath == "" {
		resolved, err := exec.LookPath("adb")
		if err != nil {
			return nil, errs.NewTransportError("resolve adb binary", err)
		}
		adbPath = resolved
	}

	client, err := adb.NewWithConfig(adb.ServerConfig{Port: adb.AdbPort})
	if err != nil {
		return nil, errs.NewTransportError("create adb client", errors.Wrap(err, "goadb"))
	}

	return &AdbTransport{
		adbPath:      adbPath,
		deviceSerial: deviceSerial,
		client:       client,
		log:          logging.WithSession(logging.Logger(), "", deviceSerial),
	}, nil
}

func (t *AdbTransport) adbCommand(ctx context.Context, args ...string) *exec.Cmd {
	full := append([]string{"-s", t.deviceSerial}, args...)
	return exec.CommandContext(ctx, t.adbPath, full...)
}

// Push copies localJarPath to ServerJarPath, making up to 3 attempts in
// all on transient failure (device momentarily offline, adb server restart).
func (t *AdbTransport) Push(ctx context.Context, localJarPath string) error {
	return retry.Do(
		func() error {
			cmd := t.adbCommand(ctx, "push", localJarPath, ServerJarPath)
			out, err := cmd.CombinedOutput()
			if err != nil {
				return errors.Wrapf(err, "adb push: %s", out)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			t.log.Warn("retrying server jar push", "attempt", n, "error", err)
		}),
	)
}

func (t *AdbTransport) tunnelName(scidHex string) string {
	return fmt.Sprintf("localabstract:scrcpy_%s", scidHex)
}

// OpenTunnel removes any stale reverse forward for scidHex then creates
// a fresh one pointed at port.
func (t *AdbTransport) OpenTunnel(ctx context.Context, scidHex string, port int) error {
	_ = t.adbCommand(ctx, "reverse", "--remove", t.tunnelName(scidHex)).Run()

	cmd := t.adbCommand(ctx, "reverse", t.tunnelName(scidHex), fmt.Sprintf("tcp:%d", port))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.NewTransportError("adb reverse", errors.Errorf("%s: %s", err, out))
	}
	return nil
}

// CloseTunnel removes the reverse forward for scidHex. Errors are not
// reported: the tunnel may already be gone because the device
// disconnected, which is the common teardown case.
func (t *AdbTransport) CloseTunnel(ctx context.Context, scidHex string) error {
	_ = t.adbCommand(ctx, "reverse", "--remove", t.tunnelName(scidHex)).Run()
	return nil
}

// SpawnServer launches the server process over `adb shell`, streaming
// its stdout/stderr into the structured logger under a scid-tagged
// prefix.
func (t *AdbTransport) SpawnServer(ctx context.Context, args ServerArgs) (*ServerProcess, error) {
	t.KillServer(ctx)

	shellArgs := append([]string{"shell"}, args.argv()...)
	cmd := t.adbCommand(ctx, shellArgs...)
	cmd.Stdout = logging.NewPrefixWriter(fmt.Sprintf("[scrcpy-server %s stdout]", args.SCIDHex))
	cmd.Stderr = logging.NewPrefixWriter(fmt.Sprintf("[scrcpy-server %s stderr]", args.SCIDHex))

	if err := cmd.Start(); err != nil {
		return nil, errs.NewTransportError("spawn scrcpy server", err)
	}
	return &ServerProcess{cmd: cmd}, nil
}

// KillServer best-effort kills any scrcpy.Server process on the device.
// Errors are swallowed: this is called speculatively before every spawn
// and during teardown, where "nothing to kill" is the common case.
func (t *AdbTransport) KillServer(ctx context.Context) {
	_ = t.adbCommand(ctx, "shell", "pkill", "-f", "scrcpy.Server").Run()
}

// WaitForDevice blocks until deviceSerial reports StateOnline, or ctx is
// done. Useful before a fresh Push/SpawnServer after a device
// reconnect.
func (t *AdbTransport) WaitForDevice(ctx context.Context) error {
	if err := t.client.StartServer(); err != nil {
		return errs.NewTransportError("start adb server", err)
	}

	watcher := t.client.NewDeviceWatcher()
	defer watcher.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return errs.NewTimeoutError("wait for device", ctx.Err())
		case event, ok := <-watcher.C():
			if !ok {
				if err := watcher.Err(); err != nil {
					return errs.NewTransportError("device watcher", err)
				}
				return errs.NewTransportError("device watcher", errors.New("closed unexpectedly"))
			}
			if event.Serial == t.deviceSerial && event.NewState == adb.StateOnline {
				return nil
			}
		}
	}
}
