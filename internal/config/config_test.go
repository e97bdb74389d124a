package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-upload-dir", "/tmp/pdfs"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Env != "dev" {
		t.Fatalf("Env = %q, want dev", cfg.Env)
	}
	if cfg.Threads != 4 {
		t.Fatalf("Threads = %d, want 4", cfg.Threads)
	}
}

func TestParseRejectsSSLNoVerifyOutsideDev(t *testing.T) {
	t.Setenv("SSL_NO_VERIFY", "true")
	_, err := Parse([]string{"-upload-dir", "/tmp/pdfs", "-env", "prod"})
	if err == nil {
		t.Fatalf("expected error for SSL_NO_VERIFY outside dev")
	}
}

func TestParseRequiresConfirmForProdReset(t *testing.T) {
	_, err := Parse([]string{"-env", "prod", "-reset-db"})
	if err == nil {
		t.Fatalf("expected error for prod --reset-db without confirmation")
	}
}

func TestParseAcceptsProdResetWithConfirmation(t *testing.T) {
	cfg, err := Parse([]string{"-env", "prod", "-reset-db", "-confirm", "DELETE_ALL_PROD_DATA"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.ResetDB {
		t.Fatalf("expected ResetDB to be true")
	}
}

func TestParseRequiresUploadDir(t *testing.T) {
	_, err := Parse([]string{})
	if err == nil {
		t.Fatalf("expected error when --upload-dir is missing")
	}
}
