package manager

import (
	"context"

	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/validate"
)

// BulkItemResult is the outcome of one operation in a bulk request.
type BulkItemResult struct {
	Index     int             `json:"index"`
	Operation validate.VLANOp `json:"operation"`
	Success   bool            `json:"success"`
	Error     *cxapi.Error    `json:"error,omitempty"`
}

// BulkResult summarizes a whole batch.
type BulkResult struct {
	Items     []BulkItemResult `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// ApplyBulk validates the whole batch up front and rejects it as a unit when
// any entry is invalid: a half-applied batch is worse than a rejected one.
// Device failures during application do not stop the batch; each item
// carries its own outcome.
func ApplyBulk(ctx context.Context, backend Backend, switchIP string, ops []validate.VLANOp) (*BulkResult, map[int][]string) {
	if problems := validate.BulkOperation(ops); len(problems) > 0 {
		return nil, problems
	}

	result := &BulkResult{Items: make([]BulkItemResult, 0, len(ops))}
	for i, op := range ops {
		item := BulkItemResult{Index: i, Operation: op}

		var err error
		switch op.Operation {
		case "create":
			err = backend.CreateVLAN(ctx, op.VLANID, op.VLANName)
		case "modify":
			err = backend.UpdateVLAN(ctx, op.VLANID, op.VLANName)
		case "delete":
			err = backend.DeleteVLAN(ctx, op.VLANID)
		}

		if err != nil {
			item.Error = cxapi.AsError(err, switchIP)
			result.Failed++
		} else {
			item.Success = true
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}
