package parser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTranscriptName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"agent-abc.jsonl", true},
		{"agent-.jsonl", true},
		{"agent-abc.json", false},
		{"session.jsonl", false},
		{"xagent-abc.jsonl", false},
		{"agent-abc.jsonl.bak", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTranscriptName(tt.name))
		})
	}
}

func TestDiscoverProjectsMissingDir(t *testing.T) {
	projects, err := DiscoverProjects(
		filepath.Join(t.TempDir(), "projects"), Limits{}, nil,
	)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDiscoverProjectsNotADirectory(t *testing.T) {
	path := createTestFile(t, "projects", "")
	_, err := DiscoverProjects(path, Limits{}, nil)
	assert.Error(t, err)
}

func TestDiscoverProjects(t *testing.T) {
	root := t.TempDir()
	good := EncodeProjectPath("/Users/me/app")
	other := EncodeProjectPath("/Users/me/lib")

	mkdirAll(t,
		filepath.Join(root, good, "nested"),
		filepath.Join(root, other),
		filepath.Join(root, ".hidden"),
		filepath.Join(root, "-Users%2Fme%2F..%2Fetc"),
	)
	touch(t, filepath.Join(root, good, "agent-b.jsonl"))
	touch(t, filepath.Join(root, good, "agent-a.jsonl"))
	touch(t, filepath.Join(root, good, "session.jsonl"))
	touch(t, filepath.Join(root, good, "nested", "agent-deep.jsonl"))
	touch(t, filepath.Join(root, ".hidden", "agent-x.jsonl"))
	touch(t, filepath.Join(root, "stray-file.jsonl"))

	log, logs := captureLog(t)
	projects, err := DiscoverProjects(root, Limits{}, log)
	require.NoError(t, err)
	require.Len(t, projects, 2)

	p := projects[0]
	assert.Equal(t, good, p.EncodedName)
	assert.Equal(t, "/Users/me/app", p.DecodedPath)
	assert.Equal(t, filepath.Join(root, good), p.Dir)
	assert.False(t, p.DirModTime.IsZero())
	assert.Equal(t, []string{
		filepath.Join(root, good, "agent-a.jsonl"),
		filepath.Join(root, good, "agent-b.jsonl"),
	}, p.Transcripts)

	assert.Equal(t, "/Users/me/lib", projects[1].DecodedPath)
	assert.Empty(t, projects[1].Transcripts)

	assertLogContains(t, logs, "skipping invalid project directory")
	assertLogNotContains(t, logs, "limit reached")
}

func TestDiscoverProjectsLimits(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"/a", "/b", "/c"} {
		dir := filepath.Join(root, EncodeProjectPath(p))
		mkdirAll(t, dir)
		for _, f := range []string{"agent-1.jsonl", "agent-2.jsonl", "agent-3.jsonl"} {
			touch(t, filepath.Join(dir, f))
		}
	}

	log, logs := captureLog(t)
	projects, err := DiscoverProjects(root, Limits{
		MaxProjects:        2,
		MaxFilesPerProject: 2,
	}, log)
	require.NoError(t, err)

	require.Len(t, projects, 2)
	assert.Equal(t, "/a", projects[0].DecodedPath)
	assert.Equal(t, "/b", projects[1].DecodedPath)
	for _, p := range projects {
		assert.Len(t, p.Transcripts, 2)
	}
	assert.Equal(t, 1,
		logs.FilterMessageSnippet("project limit reached").Len())
	assert.Equal(t, 2,
		logs.FilterMessageSnippet("transcript limit reached").Len())
}

func TestDiscoverProjectsSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	touch(t, filepath.Join(outside, "agent-x.jsonl"))

	good := filepath.Join(root, EncodeProjectPath("/real"))
	mkdirAll(t, good)
	touch(t, filepath.Join(outside, "secret"))
	require.NoError(t, os.Symlink(
		filepath.Join(outside, "secret"),
		filepath.Join(good, "agent-link.jsonl"),
	))
	touch(t, filepath.Join(good, "agent-ok.jsonl"))

	require.NoError(t, os.Symlink(
		outside, filepath.Join(root, EncodeProjectPath("/linked")),
	))

	log, logs := captureLog(t)
	projects, err := DiscoverProjects(root, Limits{}, log)
	require.NoError(t, err)

	require.Len(t, projects, 1)
	assert.Equal(t, "/real", projects[0].DecodedPath)
	assert.Equal(t, []string{filepath.Join(good, "agent-ok.jsonl")},
		projects[0].Transcripts)
	assertLogContains(t, logs,
		"skipping project directory",
		"skipping transcript that is not a regular file",
	)
}
