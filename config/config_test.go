package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[client]
address = "10.0.0.5:9000"

[server]
listen = "0.0.0.0:9000"
store = "objects.db"

[log]
verbosity = 2
`
	if err := os.WriteFile(filepath.Join(dir, "latebind.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Client.Address != "10.0.0.5:9000" {
		t.Errorf("client address = %q, want 10.0.0.5:9000", c.Client.Address)
	}
	if c.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("server listen = %q, want 0.0.0.0:9000", c.Server.Listen)
	}
	if c.Server.Store != "objects.db" {
		t.Errorf("server store = %q, want objects.db", c.Server.Store)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", c.Log.Verbosity)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[log]
verbosity = 1
`
	if err := os.WriteFile(filepath.Join(dir, "latebind.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if c.Client.Address != def.Client.Address {
		t.Errorf("default client address = %q, want %q", c.Client.Address, def.Client.Address)
	}
	if c.Server.Listen != def.Server.Listen {
		t.Errorf("default server listen = %q, want %q", c.Server.Listen, def.Server.Listen)
	}
	if c.Server.Store != def.Server.Store {
		t.Errorf("default server store = %q, want %q", c.Server.Store, def.Server.Store)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[server]
listen = "127.0.0.1:7777"
`
	if err := os.WriteFile(filepath.Join(dir, "latebind.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Server.Listen != "127.0.0.1:7777" {
		t.Errorf("server listen = %q, want 127.0.0.1:7777", c.Server.Listen)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	c, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if c == nil {
		t.Fatal("expected defaults when no latebind.toml exists")
	}
	if c.Client.Address != Default().Client.Address {
		t.Errorf("client address = %q, want default", c.Client.Address)
	}
}

func TestStorePath(t *testing.T) {
	c := &Config{Dir: "/app", Server: Server{Store: "objects.db"}}
	if got := c.StorePath(); got != "/app/objects.db" {
		t.Errorf("StorePath = %q, want /app/objects.db", got)
	}

	c = &Config{Dir: "/app", Server: Server{Store: "/var/lib/latebind.db"}}
	if got := c.StorePath(); got != "/var/lib/latebind.db" {
		t.Errorf("StorePath = %q, want /var/lib/latebind.db", got)
	}
}
