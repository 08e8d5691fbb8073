package database

import (
	"path/filepath"
	"testing"
)

func TestPluginConfigRoundTrip(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "starfish.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := d.SavePluginValue("discordrelay", "webhook.url", "https://discord.com/api/webhooks/1/x"); err != nil {
		t.Fatalf("save url: %v", err)
	}
	if err := d.SavePluginValue("discordrelay", "enabled", false); err != nil {
		t.Fatalf("save enabled: %v", err)
	}
	if err := d.SavePluginValue("spellguard", "api.timeoutMs", 2500); err != nil {
		t.Fatalf("save timeout: %v", err)
	}
	if err := d.SavePluginValue("discordrelay", "enabled", true); err != nil {
		t.Fatalf("overwrite enabled: %v", err)
	}

	relay, err := d.LoadPluginConfig("discordrelay")
	if err != nil {
		t.Fatalf("load relay: %v", err)
	}
	if len(relay) != 2 || relay["enabled"] != true || relay["webhook.url"] != "https://discord.com/api/webhooks/1/x" {
		t.Fatalf("unexpected relay config %v", relay)
	}

	spell, err := d.LoadPluginConfig("spellguard")
	if err != nil {
		t.Fatalf("load spellguard: %v", err)
	}
	if spell["api.timeoutMs"] != float64(2500) {
		t.Fatalf("unexpected spellguard config %v", spell)
	}

	if err := d.DeletePluginConfig("spellguard"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	spell, err = d.LoadPluginConfig("spellguard")
	if err != nil || len(spell) != 0 {
		t.Fatalf("expected empty config after delete, got %v %v", spell, err)
	}
}

func TestGlobalInitializeAndClose(t *testing.T) {
	if err := Initialize(filepath.Join(t.TempDir(), "global.db")); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !IsConnected() || GetDB() == nil {
		t.Fatalf("expected global database to be connected")
	}
	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if IsConnected() {
		t.Fatalf("expected disconnected after close")
	}
}
