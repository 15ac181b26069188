package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathValidator(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		wantError bool
	}{
		{name: "valid directory", dir: t.TempDir()},
		{name: "empty directory", dir: "", wantError: true},
		{name: "blank directory", dir: "   ", wantError: true},
		{name: "non-existent directory", dir: "/non/existent/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewPathValidator(tt.dir)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !filepath.IsAbs(validator.GetConfiguredDirectory()) {
				t.Errorf("configured directory %q is not absolute", validator.GetConfiguredDirectory())
			}
		})
	}
}

func TestPathValidator_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "subdir")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	validFile := filepath.Join(tempDir, "valid.pdf")
	if err := os.WriteFile(validFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{name: "empty path", path: "", wantError: true},
		{name: "valid file in root", path: validFile},
		{name: "file in subdirectory", path: filepath.Join(subDir, "sub.pdf")},
		{name: "output that does not exist yet", path: filepath.Join(tempDir, "out", "filled.pdf")},
		{name: "configured directory itself", path: tempDir},
		{name: "file outside directory", path: "/etc/passwd", wantError: true},
		{name: "traversal", path: filepath.Join(tempDir, "..", "escape.pdf"), wantError: true},
		{name: "sibling with shared prefix", path: tempDir + "-other/file.pdf", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidatePath(tt.path)
			if tt.wantError && err == nil {
				t.Errorf("ValidatePath(%q) expected error", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("ValidatePath(%q) unexpected error: %v", tt.path, err)
			}
		})
	}
}

func TestPathValidator_Symlinks(t *testing.T) {
	tempDir := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.pdf")
	if err := os.WriteFile(target, []byte("secret"), 0o644); err != nil {
		t.Fatalf("Failed to create target: %v", err)
	}

	link := filepath.Join(tempDir, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	linkDir := filepath.Join(tempDir, "linkdir")
	if err := os.Symlink(outside, linkDir); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := validator.ValidatePath(link); err == nil {
		t.Error("symlink to a file outside the directory should be rejected")
	}
	if err := validator.ValidatePath(filepath.Join(linkDir, "new.pdf")); err == nil {
		t.Error("new file under a symlinked directory outside should be rejected")
	}
}

func TestPathValidator_NormalizePath(t *testing.T) {
	tempDir := t.TempDir()
	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	root := validator.GetConfiguredDirectory()

	tests := []struct {
		name      string
		path      string
		want      string
		wantError bool
	}{
		{name: "relative", path: "forms/cerfa.pdf", want: filepath.Join(root, "forms", "cerfa.pdf")},
		{name: "absolute inside", path: filepath.Join(root, "a.pdf"), want: filepath.Join(root, "a.pdf")},
		{name: "null bytes removed", path: "a\x00.pdf", want: filepath.Join(root, "a.pdf")},
		{name: "relative escape", path: "../../etc/passwd", wantError: true},
		{name: "blank", path: "  ", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.NormalizePath(tt.path)
			if tt.wantError {
				if err == nil {
					t.Errorf("NormalizePath(%q) = %q, expected error", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePath(%q) unexpected error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathValidator_ValidateDirectory(t *testing.T) {
	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "file.pdf")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := validator.ValidateDirectory(tempDir); err != nil {
		t.Errorf("ValidateDirectory(root) unexpected error: %v", err)
	}
	if err := validator.ValidateDirectory(filepath.Join(tempDir, "later")); err != nil {
		t.Errorf("ValidateDirectory(missing) unexpected error: %v", err)
	}
	if err := validator.ValidateDirectory(file); err == nil {
		t.Error("ValidateDirectory(file) expected error")
	}
	if err := validator.ValidateDirectory(os.TempDir()); err == nil {
		t.Error("ValidateDirectory(outside) expected error")
	}
}
