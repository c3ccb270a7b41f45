package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/store"
)

// fakeInstaller records install calls and returns scripted results.
type fakeInstaller struct {
	nextSlot    string
	nextSlotErr error
	bootSlot    string
	bootSlotErr error
	installErr  error

	installed        []string
	installedContent []byte
}

func (f *fakeInstaller) Install(_ context.Context, path string) error {
	f.installed = append(f.installed, path)
	if content, err := os.ReadFile(path); err == nil {
		f.installedContent = content
	}
	return f.installErr
}

func (f *fakeInstaller) NextSlot(context.Context) (string, error) {
	return f.nextSlot, f.nextSlotErr
}

func (f *fakeInstaller) BootSlot(context.Context) (string, error) {
	return f.bootSlot, f.bootSlotErr
}

// fakeRebooter records reboot requests.
type fakeRebooter struct {
	calls int
	err   error
}

func (f *fakeRebooter) Reboot(context.Context) error {
	f.calls++
	return f.err
}

// sentReport is one recorded status report.
type sentReport struct {
	Interface string
	Path      string
	Fields    map[string]any
	Stored    bool
}

// fakePublisher records status reports and returns scripted errors.
type fakePublisher struct {
	mu        sync.Mutex
	reports   []sentReport
	objErr    error
	storedErr error
}

func (f *fakePublisher) SendObject(_ context.Context, interfaceName, path string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, sentReport{interfaceName, path, fields, false})
	return f.objErr
}

func (f *fakePublisher) SendStored(_ context.Context, interfaceName, path string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, sentReport{interfaceName, path, fields, true})
	return f.storedErr
}

func (f *fakePublisher) sent() []sentReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentReport(nil), f.reports...)
}

func newTestHandler(t *testing.T, installer Installer, rebooter Rebooter) *Handler {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() }) //nolint:errcheck // Test cleanup

	h, err := New(Options{
		DownloadDirectory: t.TempDir(),
		Store:             st,
		Installer:         installer,
		Rebooter:          rebooter,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func bundleServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload) //nolint:errcheck // Test server
	}))
	t.Cleanup(server.Close)
	return server
}

func assertReport(t *testing.T, r sentReport, status, code string, stored bool) {
	t.Helper()

	if r.Interface != ResponseInterface {
		t.Errorf("report interface = %v, want %v", r.Interface, ResponseInterface)
	}
	if r.Path != "/response" {
		t.Errorf("report path = %v, want /response", r.Path)
	}
	if r.Fields["uuid"] != testRequestUUID {
		t.Errorf("report uuid = %v, want %v", r.Fields["uuid"], testRequestUUID)
	}
	if r.Fields["status"] != status {
		t.Errorf("report status = %v, want %v", r.Fields["status"], status)
	}
	if r.Fields["statusCode"] != code {
		t.Errorf("report statusCode = %v, want %v", r.Fields["statusCode"], code)
	}
	if r.Stored != stored {
		t.Errorf("report stored = %v, want %v", r.Stored, stored)
	}
}

// TestNew verifies handler option validation.
func TestNew(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer st.Close() //nolint:errcheck // Test cleanup

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{
			name: "valid options",
			opts: Options{
				DownloadDirectory: t.TempDir(),
				Store:             st,
				Installer:         &fakeInstaller{},
			},
			wantErr: false,
		},
		{
			name: "missing download directory",
			opts: Options{
				Store:     st,
				Installer: &fakeInstaller{},
			},
			wantErr: true,
		},
		{
			name: "missing store",
			opts: Options{
				DownloadDirectory: t.TempDir(),
				Installer:         &fakeInstaller{},
			},
			wantErr: true,
		},
		{
			name: "missing installer",
			opts: Options{
				DownloadDirectory: t.TempDir(),
				Store:             st,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestHandleEvent verifies the full update flow.
func TestHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("successful update installs, persists and reboots", func(t *testing.T) {
		payload := []byte("firmware-image-contents")
		server := bundleServer(t, payload)

		installer := &fakeInstaller{nextSlot: "B"}
		rebooter := &fakeRebooter{}
		pub := &fakePublisher{}
		h := newTestHandler(t, installer, rebooter)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL + "/b.raucb"}
		if err := h.HandleEvent(ctx, pub, data); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}

		if len(installer.installed) != 1 {
			t.Fatalf("installer called %d times, want 1", len(installer.installed))
		}
		if string(installer.installedContent) != string(payload) {
			t.Errorf("installed bundle does not match downloaded payload")
		}
		if rebooter.calls != 1 {
			t.Errorf("rebooter called %d times, want 1", rebooter.calls)
		}

		reports := pub.sent()
		if len(reports) != 2 {
			t.Fatalf("got %d reports, want 2", len(reports))
		}
		assertReport(t, reports[0], StatusInProgress, "", false)
		assertReport(t, reports[1], StatusInProgress, "", false)

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending == nil {
			t.Fatal("no pending update recorded")
		}
		if pending.UUID != testRequestUUID {
			t.Errorf("pending uuid = %v, want %v", pending.UUID, testRequestUUID)
		}
		if pending.Slot != "B" {
			t.Errorf("pending slot = %v, want B", pending.Slot)
		}
	})

	t.Run("staged bundle is removed after the install", func(t *testing.T) {
		server := bundleServer(t, []byte("image"))

		installer := &fakeInstaller{nextSlot: "B"}
		h := newTestHandler(t, installer, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, &fakePublisher{}, data); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}

		if len(installer.installed) != 1 {
			t.Fatalf("installer called %d times, want 1", len(installer.installed))
		}
		if _, err := os.Stat(installer.installed[0]); !os.IsNotExist(err) {
			t.Errorf("staged bundle still exists after install")
		}
	})

	t.Run("malformed request with recoverable uuid reports Error", func(t *testing.T) {
		pub := &fakePublisher{}
		installer := &fakeInstaller{}
		h := newTestHandler(t, installer, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": "ftp://nope"}
		if err := h.HandleEvent(ctx, pub, data); err == nil {
			t.Fatal("HandleEvent() expected error for bad url scheme")
		}

		if len(installer.installed) != 0 {
			t.Errorf("installer called for rejected request")
		}

		reports := pub.sent()
		if len(reports) != 1 {
			t.Fatalf("got %d reports, want 1", len(reports))
		}
		assertReport(t, reports[0], StatusError, CodeRequest, true)
	})

	t.Run("malformed request without uuid reports nothing", func(t *testing.T) {
		pub := &fakePublisher{}
		h := newTestHandler(t, &fakeInstaller{}, nil)

		if err := h.HandleEvent(ctx, pub, map[string]any{"url": "https://x"}); err == nil {
			t.Fatal("HandleEvent() expected error for missing uuid")
		}

		if len(pub.sent()) != 0 {
			t.Errorf("got %d reports, want 0", len(pub.sent()))
		}
	})

	t.Run("download failure reports network error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusGone)
		}))
		defer server.Close()

		pub := &fakePublisher{}
		installer := &fakeInstaller{nextSlot: "B"}
		h := newTestHandler(t, installer, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, pub, data); err == nil {
			t.Fatal("HandleEvent() expected error for failed download")
		}

		reports := pub.sent()
		if len(reports) != 2 {
			t.Fatalf("got %d reports, want 2", len(reports))
		}
		assertReport(t, reports[1], StatusError, CodeNetwork, true)

		if len(installer.installed) != 0 {
			t.Errorf("installer called despite failed download")
		}
	})

	t.Run("slot query failure reports deploy error", func(t *testing.T) {
		server := bundleServer(t, []byte("image"))

		pub := &fakePublisher{}
		installer := &fakeInstaller{nextSlotErr: errors.New("dbus down")}
		h := newTestHandler(t, installer, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, pub, data); err == nil {
			t.Fatal("HandleEvent() expected error for slot query failure")
		}

		reports := pub.sent()
		assertReport(t, reports[len(reports)-1], StatusError, CodeDeploy, true)
	})

	t.Run("install failure reports deploy error and records nothing", func(t *testing.T) {
		server := bundleServer(t, []byte("image"))

		pub := &fakePublisher{}
		installer := &fakeInstaller{nextSlot: "B", installErr: errors.New("bundle rejected")}
		h := newTestHandler(t, installer, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, pub, data); err == nil {
			t.Fatal("HandleEvent() expected error for failed install")
		}

		reports := pub.sent()
		assertReport(t, reports[len(reports)-1], StatusError, CodeDeploy, true)

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending != nil {
			t.Errorf("pending update recorded despite failed install")
		}
	})

	t.Run("reboot failure reports internal error and clears the record", func(t *testing.T) {
		server := bundleServer(t, []byte("image"))

		pub := &fakePublisher{}
		rebooter := &fakeRebooter{err: errors.New("shutdown refused")}
		h := newTestHandler(t, &fakeInstaller{nextSlot: "B"}, rebooter)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, pub, data); err == nil {
			t.Fatal("HandleEvent() expected error for failed reboot")
		}

		reports := pub.sent()
		assertReport(t, reports[len(reports)-1], StatusError, CodeInternal, true)

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending != nil {
			t.Errorf("pending update not cleared after failed reboot")
		}
	})

	t.Run("without a rebooter the record survives", func(t *testing.T) {
		server := bundleServer(t, []byte("image"))

		h := newTestHandler(t, &fakeInstaller{nextSlot: "B"}, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, &fakePublisher{}, data); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending == nil {
			t.Fatal("pending update missing without a rebooter")
		}
	})

	t.Run("progress report failures do not abort the install", func(t *testing.T) {
		server := bundleServer(t, []byte("image"))

		pub := &fakePublisher{objErr: errors.New("session down")}
		installer := &fakeInstaller{nextSlot: "B"}
		h := newTestHandler(t, installer, nil)

		data := map[string]any{"uuid": testRequestUUID, "url": server.URL}
		if err := h.HandleEvent(ctx, pub, data); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}

		if len(installer.installed) != 1 {
			t.Errorf("installer called %d times, want 1", len(installer.installed))
		}
	})
}

// TestEnsurePendingResponse verifies post-reboot update resolution.
func TestEnsurePendingResponse(t *testing.T) {
	ctx := context.Background()

	savePending := func(t *testing.T, h *Handler, slot string) {
		t.Helper()
		err := h.store.SavePendingUpdate(ctx, store.PendingUpdate{
			UUID: testRequestUUID,
			URL:  "https://updates.example.com/b.raucb",
			Slot: slot,
		})
		if err != nil {
			t.Fatalf("SavePendingUpdate() error = %v", err)
		}
	}

	t.Run("no pending update is a no-op", func(t *testing.T) {
		pub := &fakePublisher{}
		h := newTestHandler(t, &fakeInstaller{bootSlot: "A"}, nil)

		if err := h.EnsurePendingResponse(ctx, pub); err != nil {
			t.Fatalf("EnsurePendingResponse() error = %v", err)
		}
		if len(pub.sent()) != 0 {
			t.Errorf("got %d reports, want 0", len(pub.sent()))
		}
	})

	t.Run("matching slot reports Done and clears", func(t *testing.T) {
		pub := &fakePublisher{}
		h := newTestHandler(t, &fakeInstaller{bootSlot: "B"}, nil)
		savePending(t, h, "B")

		if err := h.EnsurePendingResponse(ctx, pub); err != nil {
			t.Fatalf("EnsurePendingResponse() error = %v", err)
		}

		reports := pub.sent()
		if len(reports) != 1 {
			t.Fatalf("got %d reports, want 1", len(reports))
		}
		assertReport(t, reports[0], StatusDone, "", true)

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending != nil {
			t.Errorf("pending update not cleared after Done")
		}
	})

	t.Run("wrong slot reports boot error and clears", func(t *testing.T) {
		pub := &fakePublisher{}
		h := newTestHandler(t, &fakeInstaller{bootSlot: "A"}, nil)
		savePending(t, h, "B")

		if err := h.EnsurePendingResponse(ctx, pub); err != nil {
			t.Fatalf("EnsurePendingResponse() error = %v", err)
		}

		reports := pub.sent()
		if len(reports) != 1 {
			t.Fatalf("got %d reports, want 1", len(reports))
		}
		assertReport(t, reports[0], StatusError, CodeBoot, true)
	})

	t.Run("boot slot query failure keeps the record", func(t *testing.T) {
		h := newTestHandler(t, &fakeInstaller{bootSlotErr: errors.New("dbus down")}, nil)
		savePending(t, h, "B")

		if err := h.EnsurePendingResponse(ctx, &fakePublisher{}); err == nil {
			t.Fatal("EnsurePendingResponse() expected error")
		}

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending == nil {
			t.Errorf("pending update cleared despite failed slot query")
		}
	})

	t.Run("report failure keeps the record", func(t *testing.T) {
		pub := &fakePublisher{storedErr: errors.New("queueing failed")}
		h := newTestHandler(t, &fakeInstaller{bootSlot: "B"}, nil)
		savePending(t, h, "B")

		if err := h.EnsurePendingResponse(ctx, pub); err == nil {
			t.Fatal("EnsurePendingResponse() expected error")
		}

		pending, err := h.store.LoadPendingUpdate(ctx)
		if err != nil {
			t.Fatalf("LoadPendingUpdate() error = %v", err)
		}
		if pending == nil {
			t.Errorf("pending update cleared despite failed report")
		}
	})
}
