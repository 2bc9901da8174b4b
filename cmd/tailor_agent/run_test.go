package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/types"
)

func TestLoadExperienceSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experience.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"nodes": [
			{"id": "work-1", "type": "work", "title": "Engineer", "skills": ["Go"]}
		]
	}`), 0o600))

	snapshot, err := loadExperienceSnapshot(path)
	require.NoError(t, err)
	require.Len(t, snapshot.Nodes, 1)
	assert.Equal(t, "work-1", snapshot.Nodes[0].ID)
	assert.Equal(t, types.NodeWork, snapshot.Nodes[0].Type)
}

func TestLoadExperienceSnapshot_Missing(t *testing.T) {
	_, err := loadExperienceSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadExperienceSnapshot_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experience.json")
	require.NoError(t, os.WriteFile(path, []byte("{bad"), 0o600))

	_, err := loadExperienceSnapshot(path)
	assert.Error(t, err)
}

func TestLoadJobSnapshot_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.txt")
	require.NoError(t, os.WriteFile(path, []byte("Python required"), 0o600))

	job, err := loadJobSnapshot(&config.Config{Job: path})
	require.NoError(t, err)
	assert.Equal(t, "Python required", job.RawText)
	assert.Empty(t, job.SourceURL)
}

func TestLoadJobSnapshot_URL(t *testing.T) {
	job, err := loadJobSnapshot(&config.Config{JobURL: "https://example.com/posting"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/posting", job.SourceURL)
	assert.Empty(t, job.RawText)
}

func TestWriteOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	output := &types.OutputMetadata{Title: "Data Engineer", WordsGenerated: 42}

	require.NoError(t, writeOutput(output, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.OutputMetadata
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Data Engineer", got.Title)
	assert.Equal(t, 42, got.WordsGenerated)
}
