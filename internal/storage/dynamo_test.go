package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// fakeDynamo implements the subset of the DynamoDB API the backend uses.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI

	items     map[string]map[string]*dynamodb.AttributeValue
	order     []string
	pageSize  int
	scanCalls int
	putErr    error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]*dynamodb.AttributeValue)}
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.StringValue(in.Item["AlertID"].S)
	if _, ok := f.items[key]; !ok {
		f.order = append(f.order, key)
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(_ aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[aws.StringValue(in.Key["AlertID"].S)]}, nil
}

func (f *fakeDynamo) ScanWithContext(_ aws.Context, in *dynamodb.ScanInput, _ ...request.Option) (*dynamodb.ScanOutput, error) {
	f.scanCalls++
	start := 0
	if in.ExclusiveStartKey != nil {
		last := aws.StringValue(in.ExclusiveStartKey["AlertID"].S)
		for i, k := range f.order {
			if k == last {
				start = i + 1
			}
		}
	}
	limit := len(f.order) - start
	if in.Limit != nil && int(*in.Limit) < limit {
		limit = int(*in.Limit)
	}
	if f.pageSize > 0 && f.pageSize < limit {
		limit = f.pageSize
	}
	keys := f.order[start : start+limit]

	out := &dynamodb.ScanOutput{Count: aws.Int64(int64(len(keys)))}
	if aws.StringValue(in.Select) != dynamodb.SelectCount {
		for _, k := range keys {
			out.Items = append(out.Items, f.items[k])
		}
	}
	if start+limit < len(f.order) {
		out.LastEvaluatedKey = map[string]*dynamodb.AttributeValue{"AlertID": {S: aws.String(keys[len(keys)-1])}}
	}
	return out, nil
}

func TestDynamoPutGetRoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	d := NewDynamo(fake, "TradingAlerts")
	ctx := context.Background()

	expiry := time.Date(2025, 10, 30, 9, 15, 0, 0, time.UTC)
	item := testItem(1, expiry)
	item.IndexName = "NIFTY"
	item.ExpiryDate = "250930"
	item.OptionType = "PUT"
	item.StrikePrice = "25800"
	item.SymbolParsed = true

	if err := d.Put(ctx, item); err != nil {
		t.Fatalf("put: %v", err)
	}

	stored := fake.items[item.AlertID]
	if ttl := aws.StringValue(stored["TTL"].N); ttl != "1761815700" {
		t.Fatalf("TTL attribute = %q, want epoch seconds of expiry", ttl)
	}
	if aws.StringValue(stored["AlertName"].S) != item.AlertName {
		t.Fatalf("AlertName attribute missing: %v", stored)
	}

	got, err := d.Get(ctx, item.AlertID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AlertID != item.AlertID || got.Timestamp != item.Timestamp || got.StrikePrice != "25800" || !got.SymbolParsed {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Expiry.Equal(expiry) {
		t.Fatalf("expiry = %v, want %v", got.Expiry, expiry)
	}
}

func TestDynamoOmitsDecompositionWhenUnparsed(t *testing.T) {
	fake := newFakeDynamo()
	d := NewDynamo(fake, "TradingAlerts")

	item := testItem(2, time.Now())
	if err := d.Put(context.Background(), item); err != nil {
		t.Fatalf("put: %v", err)
	}
	for _, attr := range []string{"IndexName", "ExpiryDate", "OptionType", "StrikePrice", "SymbolParsed"} {
		if _, ok := fake.items[item.AlertID][attr]; ok {
			t.Fatalf("%s should not be written for unparsed symbols", attr)
		}
	}
}

func TestDynamoGetMissing(t *testing.T) {
	d := NewDynamo(newFakeDynamo(), "TradingAlerts")
	if _, err := d.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDynamoScanFollowsPages(t *testing.T) {
	fake := newFakeDynamo()
	fake.pageSize = 2
	d := NewDynamo(fake, "TradingAlerts")
	for i := 0; i < 5; i++ {
		_ = d.Put(context.Background(), testItem(i, time.Now()))
	}

	items, err := d.Scan(context.Background(), 5)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 5 || fake.scanCalls != 3 {
		t.Fatalf("got %d items in %d calls, want 5 in 3", len(items), fake.scanCalls)
	}
}

func TestDynamoScanStopsAtLimit(t *testing.T) {
	fake := newFakeDynamo()
	fake.pageSize = 2
	d := NewDynamo(fake, "TradingAlerts")
	for i := 0; i < 5; i++ {
		_ = d.Put(context.Background(), testItem(i, time.Now()))
	}

	items, err := d.Scan(context.Background(), 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 3 || fake.scanCalls != 2 {
		t.Fatalf("got %d items in %d calls, want 3 in 2", len(items), fake.scanCalls)
	}
}

func TestDynamoCountPaginates(t *testing.T) {
	fake := newFakeDynamo()
	fake.pageSize = 2
	d := NewDynamo(fake, "TradingAlerts")
	for i := 0; i < 5; i++ {
		_ = d.Put(context.Background(), testItem(i, time.Now()))
	}

	n, err := d.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
	if fake.scanCalls != 3 {
		t.Fatalf("count should follow LastEvaluatedKey, made %d calls", fake.scanCalls)
	}
}

func TestDynamoPutError(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("ProvisionedThroughputExceededException")
	d := NewDynamo(fake, "TradingAlerts")
	if err := d.Put(context.Background(), testItem(1, time.Now())); err == nil {
		t.Fatal("put error should propagate from the backend")
	}
}
