package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

func TestNewSettingsDefaults(t *testing.T) {
	vault := t.TempDir()

	settings, err := NewSettings(vault, "", "")
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}

	if settings.DataRoot != filepath.Join(vault, "datasites") {
		t.Errorf("unexpected data root %s", settings.DataRoot)
	}
	if settings.ShadowRoot != filepath.Join(vault, "unencrypted") {
		t.Errorf("unexpected shadow root %s", settings.ShadowRoot)
	}
	if settings.KeysDir() != filepath.Join(vault, "keys") {
		t.Errorf("unexpected keys dir %s", settings.KeysDir())
	}
}

func TestNewSettingsReadsDatasiteConfig(t *testing.T) {
	base := t.TempDir()
	vault := filepath.Join(base, ".syc")

	config := &DatasiteConfig{
		EncryptedRoot: "../SyftBox/datasites",
		ShadowRoot:    "../SyftBox/unencrypted",
	}
	if err := SaveDatasiteConfig(filepath.Join(vault, "config", "datasite.json"), config); err != nil {
		t.Fatalf("SaveDatasiteConfig failed: %v", err)
	}

	settings, err := NewSettings(vault, "", "")
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}

	if want := filepath.Join(base, "SyftBox", "datasites"); settings.DataRoot != want {
		t.Errorf("expected data root %s, got %s", want, settings.DataRoot)
	}
	if want := filepath.Join(base, "SyftBox", "unencrypted"); settings.ShadowRoot != want {
		t.Errorf("expected shadow root %s, got %s", want, settings.ShadowRoot)
	}
}

func TestNewSettingsFlagsOverrideFile(t *testing.T) {
	vault := t.TempDir()
	if err := SaveDatasiteConfig(filepath.Join(vault, "config", "datasite.json"), &DatasiteConfig{EncryptedRoot: "from-file"}); err != nil {
		t.Fatalf("SaveDatasiteConfig failed: %v", err)
	}

	settings, err := NewSettings(vault, "/flag/data", "/flag/shadow")
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	if settings.DataRoot != "/flag/data" || settings.ShadowRoot != "/flag/shadow" {
		t.Errorf("flags did not win: %+v", settings)
	}
}

func TestNewSettingsMalformedDatasiteConfig(t *testing.T) {
	vault := t.TempDir()
	path := filepath.Join(vault, "config", "datasite.json")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewSettings(vault, "", "")
	if !errors.Is(err, kerrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestBundlePath(t *testing.T) {
	settings := &Settings{DataRoot: "/data"}

	got, err := settings.BundlePath("alice@example.com")
	if err != nil {
		t.Fatalf("BundlePath failed: %v", err)
	}
	if want := filepath.Join("/data", "alice@example.com", "public", "crypto", "did.json"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if _, err := settings.BundlePath("../escape"); !errors.Is(err, kerrors.ErrInvalidIdentity) {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestLoadGateConfig(t *testing.T) {
	vault := t.TempDir()
	settings := &Settings{VaultPath: vault}

	t.Run("Defaults", func(t *testing.T) {
		config, err := LoadGateConfig(settings)
		if err != nil {
			t.Fatalf("LoadGateConfig failed: %v", err)
		}
		if *config != *DefaultGateConfig(settings) {
			t.Errorf("expected defaults, got %+v", config)
		}
	})

	t.Run("PartialFile", func(t *testing.T) {
		if err := SaveGateConfig(settings, &GateConfig{LogsRoot: "audit", OwnerFullAccess: true}); err != nil {
			t.Fatalf("SaveGateConfig failed: %v", err)
		}

		config, err := LoadGateConfig(settings)
		if err != nil {
			t.Fatalf("LoadGateConfig failed: %v", err)
		}
		if config.LogsRoot != filepath.Join(vault, "audit") {
			t.Errorf("expected logs root resolved against vault, got %s", config.LogsRoot)
		}
		if config.MaxSegmentBytes != DefaultMaxSegmentBytes {
			t.Errorf("expected default segment size, got %d", config.MaxSegmentBytes)
		}
		if config.ListenAddr != DefaultListenAddr {
			t.Errorf("expected default listen addr, got %s", config.ListenAddr)
		}
		if !config.OwnerFullAccess {
			t.Error("expected owner_full_access to be read")
		}
	})

	t.Run("NegativeSegmentSize", func(t *testing.T) {
		if err := SaveGateConfig(settings, &GateConfig{MaxSegmentBytes: -1}); err != nil {
			t.Fatalf("SaveGateConfig failed: %v", err)
		}
		if _, err := LoadGateConfig(settings); !errors.Is(err, kerrors.ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})
}
