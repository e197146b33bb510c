package perms

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveOwner(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		want    int
		wantErr bool
	}{
		{"empty", "", -1, false},
		{"numeric", "107", 107, false},
		{"root", "root", 0, false},
		{"unknown", "no-such-user-xyz", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOwner(tt.owner)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveOwner() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ResolveOwner() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveGroup(t *testing.T) {
	if gid, err := ResolveGroup(""); err != nil || gid != -1 {
		t.Errorf("ResolveGroup(\"\") = %d, %v", gid, err)
	}
	if gid, err := ResolveGroup("4242"); err != nil || gid != 4242 {
		t.Errorf("ResolveGroup(numeric) = %d, %v", gid, err)
	}
	if _, err := ResolveGroup("no-such-group-xyz"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestApply_ModeDelta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	changed, err := Apply(path, Spec{Mode: "0644"}, false)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !changed {
		t.Error("expected changed = true for mode drift")
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm() != 0o644 {
		t.Errorf("mode = %o, want 0644", st.Mode().Perm())
	}

	// converged path reports no change
	changed, err = Apply(path, Spec{Mode: "0644"}, false)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if changed {
		t.Error("expected changed = false when already converged")
	}
}

func TestApply_MissingPath(t *testing.T) {
	if _, err := Apply("/no/such/path", Spec{Mode: "0644"}, false); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestApply_BadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Apply(path, Spec{Mode: "notoctal"}, false); err == nil {
		t.Error("expected error for invalid mode")
	}
	if _, err := Apply(path, Spec{Owner: "no-such-user-xyz"}, false); err == nil {
		t.Error("expected error for unresolvable owner")
	}
}

func TestApply_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o700); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "f")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	// non-recursive leaves children alone
	if _, err := Apply(dir, Spec{Mode: "0755"}, false); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	st, _ := os.Stat(file)
	if st.Mode().Perm() != 0o600 {
		t.Errorf("non-recursive apply touched child: %o", st.Mode().Perm())
	}

	changed, err := Apply(dir, Spec{Mode: "0755"}, true)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !changed {
		t.Error("expected changed = true for recursive apply")
	}
	st, _ = os.Stat(file)
	if st.Mode().Perm() != 0o755 {
		t.Errorf("child mode = %o, want 0755", st.Mode().Perm())
	}
}

func TestCreateWithPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pool")

	changed, err := CreateWithPermissions(dir, Spec{Mode: "0770"}, true)
	if err != nil {
		t.Fatalf("CreateWithPermissions() error: %v", err)
	}
	if !changed {
		t.Error("expected changed = true for new directory")
	}

	st, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsDir() || st.Mode().Perm() != 0o770 {
		t.Errorf("dir = %v mode = %o", st.IsDir(), st.Mode().Perm())
	}

	// existing path converges instead of failing
	changed, err = CreateWithPermissions(dir, Spec{Mode: "0770"}, true)
	if err != nil {
		t.Fatalf("CreateWithPermissions() error: %v", err)
	}
	if changed {
		t.Error("expected changed = false for converged directory")
	}
}

func TestCreateWithPermissions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")

	changed, err := CreateWithPermissions(path, Spec{Mode: "0640"}, false)
	if err != nil {
		t.Fatalf("CreateWithPermissions() error: %v", err)
	}
	if !changed {
		t.Error("expected changed = true for new file")
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.IsDir() || st.Mode().Perm() != 0o640 {
		t.Errorf("file mode = %o", st.Mode().Perm())
	}
}

func TestCreateWithPermissions_BadOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if _, err := CreateWithPermissions(path, Spec{Owner: "no-such-user-xyz"}, false); err == nil {
		t.Error("expected error for unresolvable owner")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("failed create left an artifact behind")
	}
}
