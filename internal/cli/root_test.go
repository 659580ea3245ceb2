package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/app"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/config"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

func lots() *types.Layer {
	return &types.Layer{
		Name:    "lots",
		Fields:  []types.FieldDef{{Name: "code", Type: types.FieldText}},
		Records: []types.Record{{Values: []interface{}{"L1"}}, {Values: []interface{}{"L2"}}},
	}
}

func zones() *types.Layer {
	return &types.Layer{
		Name:    "zones",
		Fields:  []types.FieldDef{{Name: "kind", Type: types.FieldInteger}},
		Records: []types.Record{{Values: []interface{}{int64(3)}}},
	}
}

// run executes the root command against an in-memory source and returns
// stdout, stderr and the error.
func run(t *testing.T, mem *container.Memory, args ...string) (string, string, error) {
	t.Helper()

	orig := newApp
	newApp = func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger, app.WithSource(mem))
	}
	t.Cleanup(func() { newApp = orig })

	resetFlags()
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default between executions.
func resetFlags() {
	configPath, logLevel, logFormat = "", "", ""
	convertOverwrite, convertVerify, convertPublish = true, false, false
	convertOptions = nil
	reset := func(f *pflag.Flag) { f.Changed = false }
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, _, err := run(t, container.NewMemory(), "--help")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"fgdb2gpkg", "convert", "layers", "verify"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersion("1.4.0")
	out, _, err := run(t, container.NewMemory(), "--version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "1.4.0") {
		t.Errorf("version output = %q", out)
	}
}

func TestConvert_RequiresTwoArguments(t *testing.T) {
	for _, args := range [][]string{{"convert"}, {"convert", "only.gdb"}} {
		if _, _, err := run(t, container.NewMemory(), args...); err == nil {
			t.Errorf("expected argument error for %v", args)
		}
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "city.gpkg")
	mem := container.NewMemory()
	mem.Put("city.gdb", lots(), zones())

	out, logs, err := run(t, mem, "convert", "city.gdb", dst, "--verify", "--log-format", "logfmt")
	if err != nil {
		t.Fatalf("convert failed: %v\n%s", err, logs)
	}
	if !strings.Contains(out, "2 converted, 0 skipped, 3 records") || !strings.Contains(out, "verified 2 layers") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(logs, "migration started") {
		t.Errorf("expected progress logs, got %q", logs)
	}

	// Append run: both layers already exist.
	out, logs, err = run(t, mem, "convert", "city.gdb", dst, "--overwrite=false")
	if err != nil {
		t.Fatalf("append convert failed: %v", err)
	}
	if !strings.Contains(out, "0 converted, 2 skipped") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Count(logs, "layer already exists") != 2 {
		t.Errorf("expected two skip warnings:\n%s", logs)
	}

	out, _, err = run(t, mem, "layers", dst)
	if err != nil {
		t.Fatal(err)
	}
	if out != "lots\nzones\n" {
		t.Errorf("layers output = %q", out)
	}
}

func TestConvert_WriteOptions(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "city.gpkg")
	mem := container.NewMemory()
	mem.Put("city.gdb", lots())

	_, _, err := run(t, mem, "convert", "city.gdb", dst, "--lco", "LAUNDER=NO")
	if !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected INVALID_OPTIONS, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("destination created despite invalid options")
	}

	_, _, err = run(t, mem, "convert", "city.gdb", dst, "--lco", "broken")
	if err == nil || !strings.Contains(err.Error(), "KEY=VALUE") {
		t.Errorf("expected parse error, got %v", err)
	}

	if _, _, err := run(t, mem, "convert", "city.gdb", dst, "--lco", "identifier=City lots", "--lco", "FID=objectid"); err != nil {
		t.Fatalf("convert with options failed: %v", err)
	}
}

func TestConvert_MissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "keep.gpkg")
	if err := os.WriteFile(dst, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := run(t, container.NewMemory(), "convert", filepath.Join(dir, "nope.gdb"), dst)
	if !errors.Is(err, apperrors.ErrSourceNotFound) {
		t.Fatalf("expected SOURCE_NOT_FOUND, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "keep" {
		t.Error("destination touched")
	}
}

func TestConvert_ConfigFileAndPublish(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "city.gpkg")
	publishDir := filepath.Join(dir, "out")
	cfgPath := filepath.Join(dir, "fgdb2gpkg.yaml")
	cfgData := "log:\n  level: warn\npublish:\n  type: local\n  path: " + publishDir + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0644); err != nil {
		t.Fatal(err)
	}

	mem := container.NewMemory()
	mem.Put("city.gdb", lots())

	out, logs, err := run(t, mem, "convert", "city.gdb", dst, "--config", cfgPath, "--publish")
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.Contains(out, "published city.gpkg") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(logs, "migration started") {
		t.Errorf("info logs emitted at warn level:\n%s", logs)
	}
	if _, err := os.Stat(filepath.Join(publishDir, "city.gpkg")); err != nil {
		t.Errorf("published file missing: %v", err)
	}
}

func TestConvert_InvalidLogLevel(t *testing.T) {
	_, _, err := run(t, container.NewMemory(), "convert", "a.gdb", "b.gpkg", "--log-level", "chatty")
	if err == nil || !strings.Contains(err.Error(), "log level") {
		t.Errorf("expected log level error, got %v", err)
	}
}

func TestVerifyCommand(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "city.gpkg")
	mem := container.NewMemory()
	mem.Put("city.gdb", lots(), zones())

	if _, _, err := run(t, mem, "convert", "city.gdb", dst); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, mem, "verify", "city.gdb", dst)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(out, "LAYER") || strings.Count(out, " ok") != 2 {
		t.Errorf("unexpected output:\n%s", out)
	}

	changed := zones()
	changed.Records[0].Values[0] = int64(4)
	mem.Put("city.gdb", lots(), changed)
	out, _, err = run(t, mem, "verify", "city.gdb", dst)
	if !errors.Is(err, apperrors.ErrVerificationFailure) {
		t.Fatalf("expected VERIFY_MISMATCH, got %v", err)
	}
	if !strings.Contains(out, "differs") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
