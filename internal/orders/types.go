package orders

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Order statuses
const (
	StatusPending   = "PENDING"
	StatusConcluded = "CONCLUDED"
)

// Order represents the item stored in the orders DynamoDB table.
// Attribute names follow the upstream table written by the ordering system.
type Order struct {
	ID        string   `dynamodbav:"id"`      // PK
	Customer  string   `dynamodbav:"cliente"` // customer name
	Table     TableRef `dynamodbav:"mesa"`    // table / location designator
	Items     []string `dynamodbav:"itens"`
	Status    string   `dynamodbav:"status"` // PENDING | CONCLUDED
	UpdatedAt string   `dynamodbav:"updated_at,omitempty"`
}

// TableRef is the table designator. Upstream writers store it either as a
// string or as a number, so both decode into the same value.
type TableRef string

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (t *TableRef) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		*t = TableRef(v.Value)
	case *types.AttributeValueMemberN:
		*t = TableRef(v.Value)
	case *types.AttributeValueMemberNULL:
		*t = ""
	default:
		return fmt.Errorf("mesa: unsupported attribute type %T", av)
	}
	return nil
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (t TableRef) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: string(t)}, nil
}

var (
	_ attributevalue.Marshaler   = TableRef("")
	_ attributevalue.Unmarshaler = (*TableRef)(nil)
)
