package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/IDGHIM/TaskFlow/domain"
)

const (
	metaRowKey = "~meta"
	edmInt64   = "Edm.Int64"
)

var tableRetry = policy.RetryOptions{
	MaxRetries:    3,
	TryTimeout:    time.Minute * 3,
	RetryDelay:    time.Second * 1,
	MaxRetryDelay: time.Second * 15,
	StatusCodes:   []int{408, 429, 500, 502, 503, 504},
}

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	entityKeys
	Text      string `json:"Text"`
	Completed bool   `json:"Completed"`
	Priority  string `json:"Priority"`
	DueDate   string `json:"DueDate"`
	Category  string `json:"Category"`
	Position  int    `json:"Position"`
}

type metaEntity struct {
	entityKeys
	NextID     string `json:"NextID"`
	NextIDType string `json:"NextID@odata.type"`
}

// TablePersister stores each owner's list in one table partition: a row per
// task keyed by its zero-padded id plus a meta row holding the id counter.
type TablePersister struct {
	table *aztables.Client
}

// NewTablePersister connects to table using the storage connection string.
func NewTablePersister(connStr, table string) (*TablePersister, error) {
	opts := aztables.ClientOptions{ClientOptions: azcore.ClientOptions{Retry: tableRetry}}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TablePersister{table: svc.NewClient(table)}, nil
}

func (p *TablePersister) Load(ctx context.Context, owner string) (domain.State, bool, error) {
	filter := partitionFilter(owner)
	pager := p.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var rows [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return domain.State{}, false, err
		}
		rows = append(rows, resp.Entities...)
	}
	if len(rows) == 0 {
		return domain.State{}, false, nil
	}
	st, err := decodePartition(rows)
	if err != nil {
		return domain.State{}, false, err
	}
	return st, true, nil
}

// Save upserts every task of state, then removes rows of tasks that are gone.
func (p *TablePersister) Save(ctx context.Context, owner string, state domain.State) error {
	existing, err := p.rowKeys(ctx, owner)
	if err != nil {
		return fmt.Errorf("list rows: %w", err)
	}

	entities, err := encodePartition(owner, state)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(entities))
	for _, e := range entities {
		if _, err := p.table.UpsertEntity(ctx, e.payload, nil); err != nil {
			return fmt.Errorf("upsert %s: %w", e.rowKey, err)
		}
		keep[e.rowKey] = true
	}

	for _, rk := range existing {
		if keep[rk] {
			continue
		}
		et := azcore.ETagAny
		if _, err := p.table.DeleteEntity(ctx, owner, rk, &aztables.DeleteEntityOptions{IfMatch: &et}); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete %s: %w", rk, err)
		}
	}
	return nil
}

func (p *TablePersister) rowKeys(ctx context.Context, owner string) ([]string, error) {
	filter := partitionFilter(owner)
	sel := "RowKey"
	pager := p.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	var keys []string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var k entityKeys
			if err := sonic.Unmarshal(raw, &k); err != nil {
				return nil, err
			}
			keys = append(keys, k.RowKey)
		}
	}
	return keys, nil
}

type encodedEntity struct {
	rowKey  string
	payload []byte
}

func encodePartition(owner string, state domain.State) ([]encodedEntity, error) {
	out := make([]encodedEntity, 0, len(state.Tasks)+1)
	for i, t := range state.Tasks {
		ent := taskEntity{
			entityKeys: entityKeys{PartitionKey: owner, RowKey: rowKey(t.ID)},
			Text:       t.Text,
			Completed:  t.Completed,
			Priority:   string(t.Priority),
			DueDate:    t.DueDate,
			Category:   string(t.Category),
			Position:   i,
		}
		payload, err := sonic.Marshal(ent)
		if err != nil {
			return nil, err
		}
		out = append(out, encodedEntity{rowKey: ent.RowKey, payload: payload})
	}
	meta := metaEntity{
		entityKeys: entityKeys{PartitionKey: owner, RowKey: metaRowKey},
		NextID:     strconv.FormatInt(state.NextID, 10),
		NextIDType: edmInt64,
	}
	payload, err := sonic.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return append(out, encodedEntity{rowKey: metaRowKey, payload: payload}), nil
}

func decodePartition(rows [][]byte) (domain.State, error) {
	type positioned struct {
		task domain.Task
		pos  int
	}
	var (
		items  []positioned
		nextID int64
	)
	for _, raw := range rows {
		var keys entityKeys
		if err := sonic.Unmarshal(raw, &keys); err != nil {
			return domain.State{}, err
		}
		if keys.RowKey == metaRowKey {
			var meta metaEntity
			if err := sonic.Unmarshal(raw, &meta); err != nil {
				return domain.State{}, err
			}
			n, err := strconv.ParseInt(meta.NextID, 10, 64)
			if err != nil {
				return domain.State{}, fmt.Errorf("meta NextID: %w", err)
			}
			nextID = n
			continue
		}
		var ent taskEntity
		if err := sonic.Unmarshal(raw, &ent); err != nil {
			return domain.State{}, err
		}
		id, err := strconv.ParseInt(ent.RowKey, 10, 64)
		if err != nil {
			return domain.State{}, fmt.Errorf("row key %q: %w", ent.RowKey, err)
		}
		items = append(items, positioned{
			task: domain.Task{
				ID:        id,
				Text:      ent.Text,
				Completed: ent.Completed,
				Priority:  domain.Priority(ent.Priority).OrDefault(),
				DueDate:   domain.NormalizeDueDate(ent.DueDate),
				Category:  domain.Category(ent.Category).OrDefault(),
			},
			pos: ent.Position,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].pos < items[j].pos })
	tasks := make([]domain.Task, len(items))
	for i, it := range items {
		tasks[i] = it.task
	}
	return domain.NewState(tasks).WithNextID(nextID), nil
}

func rowKey(id int64) string {
	return fmt.Sprintf("%019d", id)
}

func partitionFilter(owner string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(owner, "'", "''") + "'"
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
