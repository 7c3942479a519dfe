package durable

import (
	"context"
	"path/filepath"

	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/processors"
)

// DurableNotesProcessor wraps a NotesProcessor with an on-disk journal
// so a note already fully processed in a prior run is skipped, and a
// note left cancelled or failed is retried ahead of the new batch
// (§4.6).
type DurableNotesProcessor struct {
	inner *processors.NotesProcessor
	root  string
}

// NewDurableNotesProcessor roots the journal at
// <syncPersistentStorageRoot>/last_sync_data/notes.
func NewDurableNotesProcessor(inner *processors.NotesProcessor, syncPersistentStorageRoot string) *DurableNotesProcessor {
	return &DurableNotesProcessor{
		inner: inner,
		root:  filepath.Join(syncPersistentStorageRoot, "last_sync_data", "notes"),
	}
}

func (d *DurableNotesProcessor) scopeDir(linkedNotebookGuid string) string {
	if linkedNotebookGuid == "" {
		return d.root
	}
	return filepath.Join(d.root, "linkedNotebooks", linkedNotebookGuid)
}

// Process runs incoming/expunged through the journal: notes already
// processed at an equal-or-higher usn and guids already expunged are
// dropped, then the previous run's carry-over expunges, its carry-over
// notes and the new batch are processed in that order, each stage
// finishing before the next starts, and every outcome updates the
// journal.
func (d *DurableNotesProcessor) Process(ctx context.Context, incoming []*model.Note, expunged []string, linkedNotebookGuid string) ([]processors.NoteResult, error) {
	journal, err := NewJournal(d.scopeDir(linkedNotebookGuid), "Notes")
	if err != nil {
		return nil, err
	}

	processed, err := journal.LoadProcessed()
	if err != nil {
		return nil, err
	}
	alreadyExpunged, err := journal.LoadExpunged()
	if err != nil {
		return nil, err
	}
	failedToExpunge, err := journal.LoadFailedToExpunge()
	if err != nil {
		return nil, err
	}

	filteredNotes := incoming[:0:0]
	for _, n := range incoming {
		if usn, ok := processed[n.Guid]; ok && usn >= n.UpdateSequenceNum {
			continue
		}
		filteredNotes = append(filteredNotes, n)
	}

	filteredExpunged := expunged[:0:0]
	for _, guid := range expunged {
		if _, ok := alreadyExpunged[guid]; !ok {
			filteredExpunged = append(filteredExpunged, guid)
		}
	}

	carryOverNotes, err := loadJSONDir[*model.Note](journal.cancelledDir())
	if err != nil {
		return nil, err
	}
	failedDownload, err := loadJSONDir[*model.Note](journal.failedToDownloadDir())
	if err != nil {
		return nil, err
	}
	failedProcess, err := loadJSONDir[*model.Note](journal.failedToProcessDir())
	if err != nil {
		return nil, err
	}
	carryOverNotes = append(carryOverNotes, failedDownload...)
	carryOverNotes = append(carryOverNotes, failedProcess...)

	carryOverExpunged := make([]string, 0, len(failedToExpunge))
	for guid := range failedToExpunge {
		carryOverExpunged = append(carryOverExpunged, guid)
	}

	noteList := append(carryOverNotes, filteredNotes...)

	byGuid := make(map[string]*model.Note, len(noteList))
	for _, n := range noteList {
		byGuid[n.Guid] = n
	}

	results := d.inner.ProcessMetadata(ctx, nil, carryOverExpunged)
	results = append(results, d.inner.ProcessMetadata(ctx, carryOverNotes, nil)...)
	results = append(results, d.inner.ProcessMetadata(ctx, filteredNotes, filteredExpunged)...)

	for _, r := range results {
		switch r.Outcome {
		case processors.NoteAdded, processors.NoteUpdated:
			if err := journal.MarkProcessed(r.Guid, r.USN); err != nil {
				return results, err
			}
		case processors.NoteExpunged:
			if err := journal.MarkExpunged(r.Guid); err != nil {
				return results, err
			}
		case processors.NoteFailedToExpunge:
			if err := journal.MarkFailedToExpunge(r.Guid); err != nil {
				return results, err
			}
		case processors.NoteCancelled:
			if n, ok := byGuid[r.Guid]; ok {
				if err := journal.SaveCancelled(r.Guid, n); err != nil {
					return results, err
				}
			}
		case processors.NoteFailedToDownloadFullData:
			if n, ok := byGuid[r.Guid]; ok {
				if err := journal.SaveFailedToDownload(r.Guid, n); err != nil {
					return results, err
				}
			}
		case processors.NoteFailedToPutToLocalStorage, processors.NoteFailedToResolveConflict:
			if n, ok := byGuid[r.Guid]; ok {
				if err := journal.SaveFailedToProcess(r.Guid, n); err != nil {
					return results, err
				}
			}
		}
	}

	return results, nil
}
