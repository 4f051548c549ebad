package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencode-ai/pmsync/internal/models"
	"github.com/opencode-ai/pmsync/internal/templatesync"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildReadsFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "welcome", MetaFileName), `{
		// comments are allowed
		"Name": "Welcome",
		"Alias": "welcome",
		"Subject": "Hello {{name}}",
		"TemplateType": "Standard",
		"LayoutTemplate": "base",
	}`)
	writeFile(t, filepath.Join(root, "welcome", HTMLFileName), "<p>Hi</p>")
	writeFile(t, filepath.Join(root, "_layouts", "base", MetaFileName), `{"Name":"Base","Alias":"base","TemplateType":"Layout","Subject":"ignored"}`)
	writeFile(t, filepath.Join(root, "_layouts", "base", TextFileName), "{{{@content}}}")

	result, err := Build(root, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Empty(t, result.Skipped)
	require.Len(t, result.Templates, 2)

	byAlias := map[string]models.Template{}
	for _, template := range result.Templates {
		byAlias[template.Alias] = template
	}

	welcome := byAlias["welcome"]
	require.Equal(t, models.TemplateTypeStandard, welcome.Type())
	require.Equal(t, "Hello {{name}}", welcome.Subject())
	require.Equal(t, "base", welcome.LayoutTemplate())
	require.Equal(t, "<p>Hi</p>", welcome.HTMLBody)
	require.Empty(t, welcome.TextBody)

	base := byAlias["base"]
	require.True(t, base.IsLayout())
	require.Empty(t, base.Subject())
	require.Empty(t, base.HTMLBody)
	require.Equal(t, "{{{@content}}}", base.TextBody)
}

func TestBuildDefaultsToStandard(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", MetaFileName), `{"Name":"A","Alias":"a"}`)

	result, err := Build(root, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, result.Templates, 1)
	require.Equal(t, models.TemplateTypeStandard, result.Templates[0].Type())
}

func TestBuildSkipsBadFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a-first", MetaFileName), `{"Name":"First","Alias":"dup"}`)
	writeFile(t, filepath.Join(root, "b-second", MetaFileName), `{"Name":"Second","Alias":"dup"}`)
	writeFile(t, filepath.Join(root, "broken", MetaFileName), `{"Name":`)
	writeFile(t, filepath.Join(root, "invalid", MetaFileName), `{"Alias":"nameless"}`)
	writeFile(t, filepath.Join(root, "no-alias", MetaFileName), `{"Name":"No alias"}`)
	writeFile(t, filepath.Join(root, "wrong-type", MetaFileName), `{"Name":"X","Alias":"x","TemplateType":"Other"}`)
	writeFile(t, filepath.Join(root, "stray", HTMLFileName), "<p>no metadata</p>")

	result, err := Build(root, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, result.Templates, 1)
	require.Equal(t, "First", result.Templates[0].Name)
	require.Len(t, result.Skipped, 5)
	require.Equal(t, filepath.Join(root, "b-second"), result.Skipped[0].Path)
	require.Contains(t, result.Skipped[0].Reason, "duplicate alias")
}

func TestBuildEmptyDirectory(t *testing.T) {
	result, err := Build(t.TempDir(), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Empty(t, result.Templates)
}

func TestBuildDirectoryErrors(t *testing.T) {
	root := t.TempDir()

	_, err := Build(filepath.Join(root, "missing"))
	require.ErrorIs(t, err, ErrDirectoryNotFound)

	file := filepath.Join(root, "file.txt")
	writeFile(t, file, "x")
	_, err = Build(file)
	require.ErrorIs(t, err, ErrNotADirectory)
}

func TestWriteThenBuildRoundTrip(t *testing.T) {
	root := t.TempDir()
	templates := []models.Template{
		models.NewStandard("Welcome", "welcome", "Hi", "base").WithBodies("<p>Hi</p>", "Hi"),
		models.NewStandard("Plain", "plain", "", "").WithBodies("", "text only"),
		models.NewLayout("Base", "base").WithBodies("<html>{{{@content}}}</html>", ""),
		models.NewStandard(" Padded ", "padded", " Hi ", " base").WithBodies("<p>x</p>", ""),
	}

	written, err := Write(root, templates, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, written.Written, 4)
	require.DirExists(t, filepath.Join(root, LayoutsDir, "base"))
	require.NoFileExists(t, filepath.Join(root, "plain", HTMLFileName))

	result, err := Build(root, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.ElementsMatch(t, templates, result.Templates)
}

func TestPulledTemplatesReconcileUnchanged(t *testing.T) {
	root := t.TempDir()
	remote := []models.Template{
		models.NewStandard("Welcome ", "welcome", "Hi", " base").WithBodies("<p>Hi</p>", ""),
		models.NewLayout(" Base", "base").WithBodies("{{{@content}}}", ""),
	}

	_, err := Write(root, remote, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	local, err := Build(root, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	require.Empty(t, templatesync.Reconcile(remote, local.Templates, false))
}

func TestWriteMetadataShape(t *testing.T) {
	root := t.TempDir()
	_, err := Write(root, []models.Template{
		models.NewStandard("Welcome", "welcome", "", ""),
		models.NewLayout("Base", "base"),
	}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	standard, err := os.ReadFile(filepath.Join(root, "welcome", MetaFileName))
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"Welcome","Alias":"welcome","TemplateType":"Standard","LayoutTemplate":null}`, string(standard))

	layout, err := os.ReadFile(filepath.Join(root, LayoutsDir, "base", MetaFileName))
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"Base","Alias":"base","TemplateType":"Layout"}`, string(layout))
}

func TestWriteRemovesStaleBodies(t *testing.T) {
	root := t.TempDir()
	_, err := Write(root, []models.Template{
		models.NewStandard("Welcome", "welcome", "Hi", "").WithBodies("<p>old</p>", "old"),
	}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = Write(root, []models.Template{
		models.NewStandard("Welcome", "welcome", "Hi", "").WithBodies("", "new"),
	}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	require.NoFileExists(t, filepath.Join(root, "welcome", HTMLFileName))
	text, err := os.ReadFile(filepath.Join(root, "welcome", TextFileName))
	require.NoError(t, err)
	require.Equal(t, "new", string(text))
}

func TestWriteSkipsUnsafeAliases(t *testing.T) {
	root := t.TempDir()
	result, err := Write(root, []models.Template{
		models.NewStandard("No alias", "", "", ""),
		models.NewStandard("Escape", "../outside", "", ""),
		models.NewStandard("Ok", "ok", "", ""),
	}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, result.Written, 1)
	require.Len(t, result.Skipped, 2)
	require.NoDirExists(t, filepath.Join(filepath.Dir(root), "outside"))
}
