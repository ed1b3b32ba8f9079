// Package xmlio exports a book to a portable XML document and rebuilds a book
// from one. Amounts are written as raw fixed-point integers so a round trip
// never loses precision. Import replays components through the normal
// mutation path, so account balances are derived from the data rather than
// trusted from the file.
package xmlio

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"finbook.org/internal/ledger"
)

const dateLayout = "2006-01-02"

type document struct {
	XMLName      xml.Name      `xml:"FinancialData"`
	Accounts     []accountElem `xml:"Accounts>Account"`
	Rates        []rateElem    `xml:"Rates>Rate"`
	Transactions []txElem      `xml:"Transactions>Transaction"`
}

type accountElem struct {
	ID             int64  `xml:"id,attr"`
	Name           string `xml:"name,attr"`
	Currency       string `xml:"currency,attr"`
	Balance        int64  `xml:"balance,attr"`
	IncludeInTotal bool   `xml:"includeInTotal,attr"`
}

type rateElem struct {
	Source      string  `xml:"source,attr"`
	Destination string  `xml:"destination,attr"`
	Rate        float64 `xml:"rate,attr"`
}

type txElem struct {
	ID          int64           `xml:"id,attr"`
	Type        string          `xml:"type,attr"`
	Description string          `xml:"description,attr"`
	Date        string          `xml:"date,attr"`
	Tags        []string        `xml:"Tag"`
	Components  []componentElem `xml:"Component"`
}

type componentElem struct {
	AccountID int64 `xml:"accountId,attr"`
	RawAmount int64 `xml:"amount,attr"`
}

const (
	typeExpenseIncome = "ExpenseIncome"
	typeTransfer      = "Transfer"
	typeUndefined     = "Undefined"
)

func typeString(t ledger.TransactionType) string {
	switch t {
	case ledger.TypeExpenseIncome:
		return typeExpenseIncome
	case ledger.TypeTransfer:
		return typeTransfer
	default:
		return typeUndefined
	}
}

func parseType(s string) (ledger.TransactionType, error) {
	switch s {
	case typeExpenseIncome:
		return ledger.TypeExpenseIncome, nil
	case typeTransfer:
		return ledger.TypeTransfer, nil
	case typeUndefined, "":
		return ledger.TypeUndefined, nil
	default:
		return ledger.TypeUndefined, fmt.Errorf("unknown transaction type %q", s)
	}
}

// Export writes the book as an XML document. Account and transaction IDs are
// included so components can reference accounts; they carry no meaning
// outside the file.
func Export(w io.Writer, book *ledger.Book, rates []*ledger.CurrencyRate) error {
	doc := document{}

	// Unsaved entities have no store ID yet; number them locally so
	// component references stay resolvable.
	localIDs := make(map[*ledger.Account]int64)
	next := int64(-1)
	idOf := func(a *ledger.Account) int64 {
		if a.ID != 0 {
			return a.ID
		}
		if id, ok := localIDs[a]; ok {
			return id
		}
		localIDs[a] = next
		id := next
		next--
		return id
	}

	for _, a := range book.Accounts() {
		doc.Accounts = append(doc.Accounts, accountElem{
			ID:             idOf(a),
			Name:           a.Name,
			Currency:       a.Currency(),
			Balance:        a.RawBalance(),
			IncludeInTotal: a.IncludeInTotal,
		})
	}
	for _, r := range rates {
		doc.Rates = append(doc.Rates, rateElem{
			Source:      r.Source,
			Destination: r.Destination,
			Rate:        r.Rate,
		})
	}
	for _, tx := range book.Transactions() {
		elem := txElem{
			ID:          tx.ID,
			Type:        typeString(tx.Type()),
			Description: tx.Description,
			Date:        tx.Date.Format(dateLayout),
			Tags:        tx.Tags(),
		}
		for _, c := range tx.Components() {
			ce := componentElem{RawAmount: c.RawAmount()}
			if a := c.Account(); a != nil {
				ce.AccountID = idOf(a)
			}
			elem.Components = append(elem.Components, ce)
		}
		doc.Transactions = append(doc.Transactions, elem)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Import reads an XML document into the book. All entities come in unsaved
// (zero IDs) so a subsequent save assigns fresh identities; balances are
// recomputed from components, and the cached balance attribute in the file is
// ignored. Mutations go through the book's normal operations, so an attached
// event stream observes the import.
func Import(r io.Reader, book *ledger.Book) ([]*ledger.CurrencyRate, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	accounts := make(map[int64]*ledger.Account, len(doc.Accounts))
	for _, ae := range doc.Accounts {
		a, err := book.NewAccount(ae.Name, ae.Currency)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", ae.Name, err)
		}
		a.IncludeInTotal = ae.IncludeInTotal
		if ae.ID != 0 {
			accounts[ae.ID] = a
		}
	}

	for i, te := range doc.Transactions {
		typ, err := parseType(te.Type)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		date, err := time.Parse(dateLayout, te.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: parse date %q: %w", i, te.Date, err)
		}
		tx := ledger.NewTransaction(book.Owner(), te.Description, te.Tags, date, typ)
		book.AddTransaction(tx)
		for _, ce := range te.Components {
			var account *ledger.Account
			if ce.AccountID != 0 {
				a, ok := accounts[ce.AccountID]
				if !ok {
					return nil, fmt.Errorf("transaction %d: component references unknown account %d", i, ce.AccountID)
				}
				account = a
			}
			book.AddComponent(tx, account, ce.RawAmount)
		}
	}

	var rates []*ledger.CurrencyRate
	for _, re := range doc.Rates {
		rates = append(rates, ledger.NewCurrencyRate(re.Source, re.Destination, re.Rate))
	}
	return rates, nil
}
