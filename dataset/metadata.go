package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// metadataFilename is the name of the index file inside a dataset directory.
const metadataFilename = "metadata.yaml"

// ShardRef is one record of the metadata index: the shard basename plus the
// file references for each of its arrays. An empty file reference means the
// array was absent when the shard was written.
type ShardRef struct {
	Basename  string   `yaml:"basename"`
	TaskNames []string `yaml:"task_names,flow"`
	Rows      int      `yaml:"rows"`
	IDsFile   string   `yaml:"ids"`
	XFile     string   `yaml:"X"`
	YFile     string   `yaml:"y"`
	WFile     string   `yaml:"w"`
}

// Metadata is the ordered index of shard descriptors for one dataset. The
// record order defines shard iteration order and survives save/load intact.
type Metadata struct {
	Tasks  []string   `yaml:"tasks,flow"`
	Shards []ShardRef `yaml:"shards"`
}

func metadataPath(dir string) string {
	return filepath.Join(dir, metadataFilename)
}

// saveMetadata persists the index to dir, using the same temp-file-then-rename
// dance as the shard files so readers never observe a half-written index.
func saveMetadata(dir string, meta Metadata) error {
	raw, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tmp, err := os.CreateTemp(dir, metadataFilename+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp metadata file: %w", err)
	}
	if err := os.Rename(tmpName, metadataPath(dir)); err != nil {
		return fmt.Errorf("rename metadata into place: %w", err)
	}
	return nil
}

// loadMetadata reads the index from dir. A missing index file is fatal: a
// directory without one is not a dataset.
func loadMetadata(dir string) (Metadata, error) {
	raw, err := os.ReadFile(metadataPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("no metadata found in %s", dir)
		}
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, nil
}
