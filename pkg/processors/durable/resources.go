package durable

import (
	"context"
	"path/filepath"

	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/processors"
)

// DurableResourcesProcessor is the resource analogue of
// DurableNotesProcessor: identical journal shape, rooted at
// <syncPersistentStorageRoot>/last_sync_data/resources (§4.6).
type DurableResourcesProcessor struct {
	inner *processors.ResourcesProcessor
	root  string
}

func NewDurableResourcesProcessor(inner *processors.ResourcesProcessor, syncPersistentStorageRoot string) *DurableResourcesProcessor {
	return &DurableResourcesProcessor{
		inner: inner,
		root:  filepath.Join(syncPersistentStorageRoot, "last_sync_data", "resources"),
	}
}

func (d *DurableResourcesProcessor) scopeDir(linkedNotebookGuid string) string {
	if linkedNotebookGuid == "" {
		return d.root
	}
	return filepath.Join(d.root, "linkedNotebooks", linkedNotebookGuid)
}

func (d *DurableResourcesProcessor) Process(ctx context.Context, incoming []*model.Resource, expunged []string, linkedNotebookGuid string) ([]processors.ResourceResult, error) {
	journal, err := NewJournal(d.scopeDir(linkedNotebookGuid), "Resources")
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

	filteredResources := incoming[:0:0]
	for _, r := range incoming {
		if usn, ok := processed[r.Guid]; ok && usn >= r.UpdateSequenceNum {
			continue
		}
		filteredResources = append(filteredResources, r)
	}

	filteredExpunged := expunged[:0:0]
	for _, guid := range expunged {
		if _, ok := alreadyExpunged[guid]; !ok {
			filteredExpunged = append(filteredExpunged, guid)
		}
	}

	carryOver, err := loadJSONDir[*model.Resource](journal.cancelledDir())
	if err != nil {
		return nil, err
	}
	failedDownload, err := loadJSONDir[*model.Resource](journal.failedToDownloadDir())
	if err != nil {
		return nil, err
	}
	failedProcess, err := loadJSONDir[*model.Resource](journal.failedToProcessDir())
	if err != nil {
		return nil, err
	}
	carryOver = append(carryOver, failedDownload...)
	carryOver = append(carryOver, failedProcess...)

	carryOverExpunged := make([]string, 0, len(failedToExpunge))
	for guid := range failedToExpunge {
		carryOverExpunged = append(carryOverExpunged, guid)
	}

	resourceList := append(carryOver, filteredResources...)

	byGuid := make(map[string]*model.Resource, len(resourceList))
	for _, r := range resourceList {
		byGuid[r.Guid] = r
	}

	results := d.inner.ProcessMetadata(ctx, nil, carryOverExpunged)
	results = append(results, d.inner.ProcessMetadata(ctx, carryOver, nil)...)
	results = append(results, d.inner.ProcessMetadata(ctx, filteredResources, filteredExpunged)...)

	for _, r := range results {
		switch r.Outcome {
		case processors.ResourceAdded, processors.ResourceUpdated:
			if err := journal.MarkProcessed(r.Guid, r.USN); err != nil {
				return results, err
			}
		case processors.ResourceExpunged:
			if err := journal.MarkExpunged(r.Guid); err != nil {
				return results, err
			}
		case processors.ResourceFailedToExpunge:
			if err := journal.MarkFailedToExpunge(r.Guid); err != nil {
				return results, err
			}
		case processors.ResourceCancelled:
			if item, ok := byGuid[r.Guid]; ok {
				if err := journal.SaveCancelled(r.Guid, item); err != nil {
					return results, err
				}
			}
		case processors.ResourceFailedToDownloadFullData:
			if item, ok := byGuid[r.Guid]; ok {
				if err := journal.SaveFailedToDownload(r.Guid, item); err != nil {
					return results, err
				}
			}
		case processors.ResourceFailedToPutToLocalStorage, processors.ResourceFailedToResolveConflict:
			if item, ok := byGuid[r.Guid]; ok {
				if err := journal.SaveFailedToProcess(r.Guid, item); err != nil {
					return results, err
				}
			}
		}
	}

	return results, nil
}
