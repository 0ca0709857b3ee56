package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account is the subset of a Salesforce Account the advisor reads.
type Account struct {
	ID             string  `json:"Id" salesforce:"Id"`
	Name           string  `json:"Name" salesforce:"Name"`
	Industry       string  `json:"Industry" salesforce:"Industry"`
	SentimentScore float64 `json:"Sentiment_Score__c" salesforce:"Sentiment_Score__c"`
}

// SignalRecord is one detected client signal stored against an Account.
type SignalRecord struct {
	ID         string  `json:"Id" salesforce:"Id"`
	Name       string  `json:"Name" salesforce:"Name"`
	Confidence float64 `json:"Confidence__c" salesforce:"Confidence__c"`
	Kind       string  `json:"Kind__c" salesforce:"Kind__c"`
	Priority   float64 `json:"Priority__c" salesforce:"Priority__c"`
}

// DefaultSignalObject is the custom object holding client signals.
const DefaultSignalObject = "Client_Signal__c"

var accountFields = []string{"Id", "Name", "Industry", "Sentiment_Score__c"}

var signalFields = []string{"Id", "Name", "Confidence__c", "Kind__c", "Priority__c"}

// FindAccountByName returns the Account with the exact name, or nil.
func FindAccountByName(ctx context.Context, c Client, name string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Name = '%s' LIMIT 1",
		strings.Join(accountFields, ", "),
		escapeSoql(name),
	)
	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrapf(err, "sf: find account %s", name)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// ListSignals returns the signal records attached to an account, highest
// priority first.
func ListSignals(ctx context.Context, c Client, object, accountID string) ([]SignalRecord, error) {
	if object == "" {
		object = DefaultSignalObject
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE Account__c = '%s' ORDER BY Priority__c DESC NULLS LAST, CreatedDate ASC",
		strings.Join(signalFields, ", "),
		object,
		escapeSoql(accountID),
	)
	var records []SignalRecord
	if err := c.Query(ctx, soql, &records); err != nil {
		return nil, eris.Wrapf(err, "sf: list signals for %s", accountID)
	}
	return records, nil
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
