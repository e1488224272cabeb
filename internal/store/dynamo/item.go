package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spigell/vacancy-matcher/internal/store"
)

// Domain types carry mapstructure tags; attribute names follow them.
const tagKey = "mapstructure"

func marshal(v any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMapWithOptions(v, func(o *attributevalue.EncoderOptions) {
		o.TagKey = tagKey
	})
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return item, nil
}

func unmarshal(item map[string]types.AttributeValue, out any) error {
	err := attributevalue.UnmarshalMapWithOptions(item, out, func(o *attributevalue.DecoderOptions) {
		o.TagKey = tagKey
	})
	if err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{keyAttr: &types.AttributeValueMemberS{Value: id}}
}

// setAll builds a SET clause in key order for stable expressions.
func setAll(fields map[string]any) expression.UpdateBuilder {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var update expression.UpdateBuilder
	for _, k := range keys {
		update = update.Set(expression.Name(k), expression.Value(fields[k]))
	}
	return update
}

func (s *Store) get(ctx context.Context, table, id string, out any) error {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       itemKey(id),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if len(resp.Item) == 0 {
		return store.ErrNotFound
	}
	return unmarshal(resp.Item, out)
}

// update applies the builder to an existing item and decodes the new image.
func (s *Store) update(ctx context.Context, table, id string, update expression.UpdateBuilder, out any) error {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(keyAttr))).
		Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	resp, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       itemKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	var missing *types.ConditionalCheckFailedException
	if errors.As(err, &missing) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return unmarshal(resp.Attributes, out)
}

func (s *Store) scanFiltered(ctx context.Context, table string, filter *expression.ConditionBuilder) ([]map[string]types.AttributeValue, error) {
	if filter == nil {
		return s.scan(ctx, table, expression.Expression{}, false)
	}
	expr, err := expression.NewBuilder().WithFilter(*filter).Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}
	return s.scan(ctx, table, expr, false)
}

func (s *Store) scan(ctx context.Context, table string, expr expression.Expression, projection bool) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if expr.Filter() != nil {
		input.FilterExpression = expr.Filter()
	}
	if projection {
		input.ProjectionExpression = expr.Projection()
	}
	if names := expr.Names(); len(names) > 0 {
		input.ExpressionAttributeNames = names
	}
	if values := expr.Values(); len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}
