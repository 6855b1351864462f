// Package dynamo implements storage.Backend on DynamoDB. Products and
// inventory are keyed by product_id; reviews use the composite
// (product_id, review_id) key and come back in sort-key order.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/catalograph/catalograph/internal/eventbus"
	"github.com/catalograph/catalograph/internal/events"
	"github.com/catalograph/catalograph/internal/storage"
)

// Tables maps entity kinds to DynamoDB table names.
type Tables struct {
	Products  string
	Reviews   string
	Inventory string
}

// Backend is the DynamoDB storage adapter. Safe for concurrent use; the
// underlying client carries its own connection pool, timeouts and retry
// policy.
type Backend struct {
	client *dynamodb.Client
	tables Tables
}

func New(client *dynamodb.Client, tables Tables) *Backend {
	return &Backend{client: client, tables: tables}
}

// keySchema describes how a kind maps onto its table's key attributes.
type keySchema struct {
	partitionAttr string
	sortAttr      string // empty for partition-only kinds
}

func (b *Backend) tableFor(kind storage.Kind) (string, keySchema, error) {
	switch kind {
	case storage.KindProduct:
		return b.tables.Products, keySchema{partitionAttr: "product_id"}, nil
	case storage.KindReview:
		return b.tables.Reviews, keySchema{partitionAttr: "product_id", sortAttr: "review_id"}, nil
	case storage.KindInventory:
		return b.tables.Inventory, keySchema{partitionAttr: "product_id"}, nil
	}
	return "", keySchema{}, fmt.Errorf("unknown entity kind %q", kind)
}

func (ks keySchema) attributeKey(key storage.Key) (map[string]types.AttributeValue, error) {
	out := map[string]types.AttributeValue{
		ks.partitionAttr: &types.AttributeValueMemberS{Value: key.Partition},
	}
	if ks.sortAttr != "" {
		if key.Sort == "" {
			return nil, fmt.Errorf("missing sort key %q", ks.sortAttr)
		}
		out[ks.sortAttr] = &types.AttributeValueMemberS{Value: key.Sort}
	}
	return out, nil
}

func (b *Backend) FetchByKey(ctx context.Context, kind storage.Kind, key storage.Key) (storage.Attributes, error) {
	table, ks, err := b.tableFor(kind)
	if err != nil {
		return nil, err
	}
	avKey, err := ks.attributeKey(key)
	if err != nil {
		return nil, err
	}

	finish := start(ctx, "fetch", kind, table)
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       avKey,
	})
	finish(err)
	if err != nil {
		return nil, unavailable("fetch", kind, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return fromItem(out.Item)
}

func (b *Backend) QueryByPartition(ctx context.Context, kind storage.Kind, partition string) ([]storage.Attributes, error) {
	table, ks, err := b.tableFor(kind)
	if err != nil {
		return nil, err
	}

	items := []storage.Attributes{}
	var exclusiveStart map[string]types.AttributeValue
	for {
		finish := start(ctx, "query", kind, table)
		out, err := b.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(table),
			KeyConditionExpression:    aws.String("#pk = :pk"),
			ExpressionAttributeNames:  map[string]string{"#pk": ks.partitionAttr},
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: partition}},
			ExclusiveStartKey:         exclusiveStart,
		})
		finish(err)
		if err != nil {
			return nil, unavailable("query", kind, err)
		}
		for _, item := range out.Items {
			attrs, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			items = append(items, attrs)
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		exclusiveStart = out.LastEvaluatedKey
	}
}

func (b *Backend) ScanPage(ctx context.Context, kind storage.Kind, token string) (storage.Page, error) {
	table, _, err := b.tableFor(kind)
	if err != nil {
		return storage.Page{}, err
	}
	exclusiveStart, err := decodeToken(token)
	if err != nil {
		return storage.Page{}, unavailable("scan", kind, err)
	}

	finish := start(ctx, "scan", kind, table)
	out, err := b.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(table),
		ExclusiveStartKey: exclusiveStart,
	})
	finish(err)
	if err != nil {
		return storage.Page{}, unavailable("scan", kind, err)
	}

	page := storage.Page{Items: []storage.Attributes{}}
	for _, item := range out.Items {
		attrs, err := fromItem(item)
		if err != nil {
			return storage.Page{}, err
		}
		page.Items = append(page.Items, attrs)
	}
	if out.LastEvaluatedKey != nil {
		page.NextToken, err = encodeToken(out.LastEvaluatedKey)
		if err != nil {
			return storage.Page{}, unavailable("scan", kind, err)
		}
	}
	return page, nil
}

func (b *Backend) UpdatePartial(ctx context.Context, kind storage.Kind, key storage.Key, changes storage.Attributes) (storage.Attributes, error) {
	table, ks, err := b.tableFor(kind)
	if err != nil {
		return nil, err
	}
	avKey, err := ks.attributeKey(key)
	if err != nil {
		return nil, err
	}
	expr, names, values, err := buildSetExpression(changes)
	if err != nil {
		return nil, err
	}
	names["#pk"] = ks.partitionAttr

	finish := start(ctx, "update", kind, table)
	out, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       avKey,
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	finish(err)
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return nil, storage.ErrNotFound
		}
		return nil, unavailable("update", kind, err)
	}
	return fromItem(out.Attributes)
}

func (b *Backend) Put(ctx context.Context, kind storage.Kind, key storage.Key, attrs storage.Attributes) error {
	table, ks, err := b.tableFor(kind)
	if err != nil {
		return err
	}
	avKey, err := ks.attributeKey(key)
	if err != nil {
		return err
	}
	item, err := toItem(attrs)
	if err != nil {
		return err
	}
	for k, v := range avKey {
		item[k] = v
	}

	finish := start(ctx, "put", kind, table)
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	finish(err)
	if err != nil {
		return unavailable("put", kind, err)
	}
	return nil
}

func start(ctx context.Context, op string, kind storage.Kind, table string) func(error) {
	began := time.Now()
	eventbus.Publish(ctx, events.StorageStart{Op: op, Kind: string(kind), Table: table})
	return func(err error) {
		eventbus.Publish(ctx, events.StorageFinish{
			Op: op, Kind: string(kind), Table: table,
			Err: err, Duration: time.Since(began),
		})
	}
}
