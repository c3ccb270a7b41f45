package supervisor

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

// notifySocket stands in for the service manager's notification socket.
func notifySocket(t *testing.T) net.PacketConn {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenPacket("unixgram", sock)
	if err != nil {
		t.Fatalf("listening on notify socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup

	t.Setenv("NOTIFY_SOCKET", sock)
	return conn
}

func readDatagram(t *testing.T, conn net.PacketConn) string {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}

	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("reading notification: %v", err)
	}
	return string(buf[:n])
}

// TestNotifier verifies sd_notify delivery.
func TestNotifier(t *testing.T) {
	t.Run("status reaches the notify socket", func(t *testing.T) {
		conn := notifySocket(t)

		New(nil).Status("Initializing")

		if got := readDatagram(t, conn); got != "STATUS=Initializing" {
			t.Errorf("notification = %q, want STATUS=Initializing", got)
		}
	})

	t.Run("ready reaches the notify socket", func(t *testing.T) {
		conn := notifySocket(t)

		New(nil).Ready()

		if got := readDatagram(t, conn); got != "READY=1" {
			t.Errorf("notification = %q, want READY=1", got)
		}
	})

	t.Run("absent supervisor is a silent no-op", func(t *testing.T) {
		t.Setenv("NOTIFY_SOCKET", "")

		n := New(nil)
		n.Status("Running")
		n.Ready()
	})
}
