// Package durable wraps the notes and resources processors with an
// on-disk journal so an interrupted sync can resume without
// re-downloading items it already finished, and retries items that
// were cancelled or failed last time (§4.6).
package durable

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mattsolo1/notewire/pkg/model"
	"gopkg.in/ini.v1"
)

// Journal persists the processed/expunged/failed state for one entity
// kind ("Notes" or "Resources") within one scope directory (the
// user-own root, or a single linked notebook's subdirectory).
type Journal struct {
	dir    string
	entity string
}

// NewJournal creates a Journal rooted at dir for the given entity kind
// ("Notes" or "Resources"), creating the scope directory and its three
// carry-over subdirectories if they don't already exist.
func NewJournal(dir, entity string) (*Journal, error) {
	j := &Journal{dir: dir, entity: entity}
	for _, sub := range []string{j.cancelledDir(), j.failedToDownloadDir(), j.failedToProcessDir()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *Journal) processedPath() string        { return filepath.Join(j.dir, "processed"+j.entity+".ini") }
func (j *Journal) expungedPath() string          { return filepath.Join(j.dir, "expunged"+j.entity+".ini") }
func (j *Journal) failedToExpungePath() string   { return filepath.Join(j.dir, "failedToExpunge"+j.entity+".ini") }
func (j *Journal) cancelledDir() string          { return filepath.Join(j.dir, "cancelled"+j.entity) }
func (j *Journal) failedToDownloadDir() string   { return filepath.Join(j.dir, "failedToDownload"+j.entity) }
func (j *Journal) failedToProcessDir() string    { return filepath.Join(j.dir, "failedToProcess"+j.entity) }

func loadGuidMap(path string) (map[string]model.USN, error) {
	out := make(map[string]model.USN)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	for _, key := range cfg.Section("").Keys() {
		n, err := strconv.Atoi(key.Value())
		if err != nil {
			continue
		}
		out[key.Name()] = model.USN(n)
	}
	return out, nil
}

func saveGuidMap(path string, m map[string]model.USN) error {
	cfg := ini.Empty()
	sec := cfg.Section("")
	for guid, usn := range m {
		sec.Key(guid).SetValue(strconv.Itoa(int(usn)))
	}
	return cfg.SaveTo(path)
}

func loadGuidSet(path string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	for _, key := range cfg.Section("").Keys() {
		out[key.Name()] = struct{}{}
	}
	return out, nil
}

func saveGuidSet(path string, set map[string]struct{}) error {
	cfg := ini.Empty()
	sec := cfg.Section("")
	for guid := range set {
		sec.Key(guid).SetValue("1")
	}
	return cfg.SaveTo(path)
}

// LoadProcessed returns the guid -> usn map of fully-processed items.
func (j *Journal) LoadProcessed() (map[string]model.USN, error) { return loadGuidMap(j.processedPath()) }

// MarkProcessed records guid as fully processed at usn, and clears any
// stale cancelled/failed carry-over entry for the same guid.
func (j *Journal) MarkProcessed(guid string, usn model.USN) error {
	m, err := j.LoadProcessed()
	if err != nil {
		return err
	}
	m[guid] = usn
	if err := saveGuidMap(j.processedPath(), m); err != nil {
		return err
	}
	if err := j.ClearCarryOver(guid); err != nil {
		return err
	}
	return j.ClearFailedToExpunge(guid)
}

// LoadExpunged returns the set of guids successfully expunged.
func (j *Journal) LoadExpunged() (map[string]struct{}, error) { return loadGuidSet(j.expungedPath()) }

func (j *Journal) MarkExpunged(guid string) error {
	set, err := j.LoadExpunged()
	if err != nil {
		return err
	}
	set[guid] = struct{}{}
	return saveGuidSet(j.expungedPath(), set)
}

func (j *Journal) LoadFailedToExpunge() (map[string]struct{}, error) {
	return loadGuidSet(j.failedToExpungePath())
}

func (j *Journal) MarkFailedToExpunge(guid string) error {
	set, err := j.LoadFailedToExpunge()
	if err != nil {
		return err
	}
	set[guid] = struct{}{}
	return saveGuidSet(j.failedToExpungePath(), set)
}

func (j *Journal) ClearFailedToExpunge(guid string) error {
	set, err := j.LoadFailedToExpunge()
	if err != nil {
		return err
	}
	if _, ok := set[guid]; !ok {
		return nil
	}
	delete(set, guid)
	return saveGuidSet(j.failedToExpungePath(), set)
}

func saveJSON(dir, guid string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, guid+".json"), data, 0o644)
}

func loadJSONDir[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SaveCancelled records item as cancelled this run, to be retried next
// time as carry-over.
func (j *Journal) SaveCancelled(guid string, item any) error {
	return saveJSON(j.cancelledDir(), guid, item)
}

func (j *Journal) SaveFailedToDownload(guid string, item any) error {
	return saveJSON(j.failedToDownloadDir(), guid, item)
}

func (j *Journal) SaveFailedToProcess(guid string, item any) error {
	return saveJSON(j.failedToProcessDir(), guid, item)
}

// ClearCarryOver removes any cancelled/failed-download/failed-process
// entry recorded for guid, from all three carry-over directories.
func (j *Journal) ClearCarryOver(guid string) error {
	for _, dir := range []string{j.cancelledDir(), j.failedToDownloadDir(), j.failedToProcessDir()} {
		path := filepath.Join(dir, guid+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
