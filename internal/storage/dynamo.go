package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/config"
	"tvwebhook/internal/symbol"
)

// dynamoItem is the attribute layout of the TradingAlerts table. TTL holds
// the expiry in epoch seconds so the table's native TTL can purge it.
type dynamoItem struct {
	AlertID           string         `dynamodbav:"AlertID"`
	Timestamp         string         `dynamodbav:"Timestamp"`
	AlertName         string         `dynamodbav:"AlertName"`
	Symbol            string         `dynamodbav:"Symbol"`
	LimitPrice        string         `dynamodbav:"LimitPrice"`
	CapitalPercent    string         `dynamodbav:"CapitalPercent"`
	LotSize           string         `dynamodbav:"LotSize"`
	OrderSlicingValue string         `dynamodbav:"OrderSlicingValue"`
	TotalQuantity     string         `dynamodbav:"TotalQuantity"`
	Processed         bool           `dynamodbav:"Processed"`
	RawData           map[string]any `dynamodbav:"RawData"`
	IndexName         string         `dynamodbav:"IndexName,omitempty"`
	ExpiryDate        string         `dynamodbav:"ExpiryDate,omitempty"`
	OptionType        string         `dynamodbav:"OptionType,omitempty"`
	StrikePrice       string         `dynamodbav:"StrikePrice,omitempty"`
	SymbolParsed      bool           `dynamodbav:"SymbolParsed,omitempty"`
	TTL               int64          `dynamodbav:"TTL"`
}

// Dynamo stores alerts in a DynamoDB table keyed by AlertID.
type Dynamo struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

// NewDynamo wires an existing client.
func NewDynamo(client dynamodbiface.DynamoDBAPI, table string) *Dynamo {
	return &Dynamo{client: client, table: table}
}

// OpenDynamo creates a client from the default AWS credential chain.
func OpenDynamo(cfg config.DynamoDBConfig) (*Dynamo, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb.table is required")
	}
	awsCfg := &aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewDynamo(dynamodb.New(sess), cfg.Table), nil
}

func (d *Dynamo) Put(ctx context.Context, item Item) error {
	av, err := dynamodbattribute.MarshalMap(toDynamo(item))
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put alert: %w", err)
	}
	return nil
}

func (d *Dynamo) Get(ctx context.Context, alertID string) (Item, error) {
	out, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]*dynamodb.AttributeValue{
			"AlertID": {S: aws.String(alertID)},
		},
	})
	if err != nil {
		return Item{}, fmt.Errorf("get alert: %w", err)
	}
	if len(out.Item) == 0 {
		return Item{}, ErrNotFound
	}
	return fromDynamoAV(out.Item)
}

// Scan follows LastEvaluatedKey until limit items are read or the table is
// exhausted. A non-positive limit reads the whole table. Each page is still
// capped at 1 MB by DynamoDB.
func (d *Dynamo) Scan(ctx context.Context, limit int) ([]Item, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(d.table)}
	var items []Item
	for {
		if limit > 0 {
			input.Limit = aws.Int64(int64(limit - len(items)))
		}
		out, err := d.client.ScanWithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan alerts: %w", err)
		}
		for _, av := range out.Items {
			item, err := fromDynamoAV(av)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && len(items) >= limit) {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Count pages through a COUNT scan of the whole table.
func (d *Dynamo) Count(ctx context.Context) (int64, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(d.table),
		Select:    aws.String(dynamodb.SelectCount),
	}
	var total int64
	for {
		out, err := d.client.ScanWithContext(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("count alerts: %w", err)
		}
		total += aws.Int64Value(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func toDynamo(item Item) dynamoItem {
	return dynamoItem{
		AlertID:           item.AlertID,
		Timestamp:         item.Timestamp,
		AlertName:         item.AlertName,
		Symbol:            item.Symbol,
		LimitPrice:        item.LimitPrice,
		CapitalPercent:    item.CapitalPercent,
		LotSize:           item.LotSize,
		OrderSlicingValue: item.OrderSlicingValue,
		TotalQuantity:     item.TotalQuantity,
		Processed:         item.Processed,
		RawData:           item.RawPayload,
		IndexName:         item.IndexName,
		ExpiryDate:        item.ExpiryDate,
		OptionType:        string(item.OptionType),
		StrikePrice:       item.StrikePrice,
		SymbolParsed:      item.SymbolParsed,
		TTL:               item.Expiry.Unix(),
	}
}

func fromDynamoAV(av map[string]*dynamodb.AttributeValue) (Item, error) {
	var di dynamoItem
	if err := dynamodbattribute.UnmarshalMap(av, &di); err != nil {
		return Item{}, fmt.Errorf("unmarshal alert: %w", err)
	}
	payload := alert.Payload(di.RawData)
	if payload == nil {
		payload = alert.Payload{}
	}
	return Item{
		AlertID: di.AlertID,
		Record: alert.Record{
			Timestamp:         di.Timestamp,
			AlertName:         di.AlertName,
			Symbol:            di.Symbol,
			LimitPrice:        di.LimitPrice,
			CapitalPercent:    di.CapitalPercent,
			LotSize:           di.LotSize,
			OrderSlicingValue: di.OrderSlicingValue,
			TotalQuantity:     di.TotalQuantity,
			Processed:         di.Processed,
			RawPayload:        payload,
			IndexName:         di.IndexName,
			ExpiryDate:        di.ExpiryDate,
			OptionType:        symbol.OptionType(di.OptionType),
			StrikePrice:       di.StrikePrice,
			SymbolParsed:      di.SymbolParsed,
		},
		Expiry: time.Unix(di.TTL, 0).UTC(),
	}, nil
}

var _ Backend = (*Dynamo)(nil)
