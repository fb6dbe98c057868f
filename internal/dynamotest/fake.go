// Package dynamotest provides an in-memory stand-in for the subset of the
// DynamoDB item API used by the repositories. Expressions are evaluated for
// the forms the repositories emit: AND-joined comparisons, attribute_exists,
// attribute_not_exists, begins_with and comma-separated SET clauses.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Client struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error
}

func New() *Client {
	return &Client{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(pk, sk string) string {
	return pk + "|" + sk
}

func keyOf(key map[string]types.AttributeValue) (string, error) {
	pk, ok := key["PK"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("dynamotest: missing PK")
	}
	sk, ok := key["SK"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("dynamotest: missing SK")
	}
	return itemKey(pk.Value, sk.Value), nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// Item returns a copy of the stored item or nil.
func (c *Client) Item(pk, sk string) map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyItem(c.items[itemKey(pk, sk)])
}

// Len reports the number of stored items.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Client) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: copyItem(c.items[k])}, nil
}

func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.items[k]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
		}
	}

	c.items[k] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (c *Client) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.items[k]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
		}
	}

	updated := copyItem(existing)
	if updated == nil {
		updated = copyItem(params.Key)
	}
	if params.UpdateExpression != nil {
		if err := applySet(*params.UpdateExpression, updated, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	c.items[k] = updated

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(updated)
	}
	return out, nil
}

func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query supports "PK = :v" optionally followed by "AND begins_with(SK, :p)".
// Results are ordered by SK, ascending unless ScanIndexForward is false.
func (c *Client) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if params.KeyConditionExpression == nil {
		return nil, errors.New("dynamotest: missing key condition")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []map[string]types.AttributeValue
	for _, item := range c.items {
		ok, err := evalCondition(*params.KeyConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, copyItem(item))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		si := matched[i]["SK"].(*types.AttributeValueMemberS).Value
		sj := matched[j]["SK"].(*types.AttributeValueMemberS).Value
		if params.ScanIndexForward != nil && !*params.ScanIndexForward {
			return si > sj
		}
		return si < sj
	})

	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func conditionFailed(existing map[string]types.AttributeValue, rv types.ReturnValuesOnConditionCheckFailure) error {
	msg := "The conditional request failed"
	ex := &types.ConditionalCheckFailedException{Message: &msg}
	if rv == types.ReturnValuesOnConditionCheckFailureAllOld {
		ex.Item = copyItem(existing)
	}
	return ex
}

func resolveName(name string, names map[string]string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}

func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, term := range strings.Split(expr, " AND ") {
		ok, err := evalTerm(strings.TrimSpace(term), item, names, values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalTerm(term string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	switch {
	case strings.HasPrefix(term, "attribute_exists(") && strings.HasSuffix(term, ")"):
		name := resolveName(term[len("attribute_exists("):len(term)-1], names)
		_, ok := item[name]
		return ok, nil
	case strings.HasPrefix(term, "attribute_not_exists(") && strings.HasSuffix(term, ")"):
		name := resolveName(term[len("attribute_not_exists("):len(term)-1], names)
		_, ok := item[name]
		return !ok, nil
	case strings.HasPrefix(term, "begins_with(") && strings.HasSuffix(term, ")"):
		args := strings.SplitN(term[len("begins_with("):len(term)-1], ",", 2)
		if len(args) != 2 {
			return false, fmt.Errorf("dynamotest: bad begins_with %q", term)
		}
		attr, ok := item[resolveName(args[0], names)].(*types.AttributeValueMemberS)
		if !ok {
			return false, nil
		}
		prefix, ok := values[strings.TrimSpace(args[1])].(*types.AttributeValueMemberS)
		if !ok {
			return false, fmt.Errorf("dynamotest: missing value for %q", args[1])
		}
		return strings.HasPrefix(attr.Value, prefix.Value), nil
	}

	for _, op := range []string{"<>", ">=", "<=", "=", ">", "<"} {
		idx := strings.Index(term, " "+op+" ")
		if idx < 0 {
			continue
		}
		name := resolveName(term[:idx], names)
		placeholder := strings.TrimSpace(term[idx+len(op)+2:])
		want, ok := values[placeholder]
		if !ok {
			return false, fmt.Errorf("dynamotest: missing value for %q", placeholder)
		}
		got, ok := item[name]
		if !ok {
			return false, nil
		}
		return compare(got, want, op)
	}

	return false, fmt.Errorf("dynamotest: unsupported condition %q", term)
}

func compare(got, want types.AttributeValue, op string) (bool, error) {
	var cmp int
	switch g := got.(type) {
	case *types.AttributeValueMemberS:
		w, ok := want.(*types.AttributeValueMemberS)
		if !ok {
			return false, nil
		}
		cmp = strings.Compare(g.Value, w.Value)
	case *types.AttributeValueMemberN:
		w, ok := want.(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		gi, gerr := strconv.ParseInt(g.Value, 10, 64)
		wi, werr := strconv.ParseInt(w.Value, 10, 64)
		if gerr == nil && werr == nil {
			// Integers compare exactly; nanosecond timestamps exceed float64 precision.
			switch {
			case gi < wi:
				cmp = -1
			case gi > wi:
				cmp = 1
			}
			break
		}
		gf, err := strconv.ParseFloat(g.Value, 64)
		if err != nil {
			return false, err
		}
		wf, err := strconv.ParseFloat(w.Value, 64)
		if err != nil {
			return false, err
		}
		switch {
		case gf < wf:
			cmp = -1
		case gf > wf:
			cmp = 1
		}
	case *types.AttributeValueMemberBOOL:
		w, ok := want.(*types.AttributeValueMemberBOOL)
		if !ok {
			return false, nil
		}
		if op != "=" && op != "<>" {
			return false, fmt.Errorf("dynamotest: operator %s on BOOL", op)
		}
		if g.Value != w.Value {
			cmp = 1
		}
	default:
		return false, fmt.Errorf("dynamotest: unsupported attribute type %T", got)
	}

	switch op {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	}
	return false, fmt.Errorf("dynamotest: unsupported operator %s", op)
}

func applySet(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("dynamotest: unsupported update %q", expr)
	}
	for _, assignment := range strings.Split(expr[len("SET "):], ",") {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("dynamotest: bad assignment %q", assignment)
		}
		name := resolveName(parts[0], names)
		placeholder := strings.TrimSpace(parts[1])
		value, ok := values[placeholder]
		if !ok {
			return fmt.Errorf("dynamotest: missing value for %q", placeholder)
		}
		item[name] = value
	}
	return nil
}
