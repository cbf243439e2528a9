package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
)

// Audience selects which identities an export covers.
type Audience int

const (
	AudienceAll Audience = iota
	AudienceWithAccount
	AudienceWithoutAccount
	AudienceNonSubscribers
)

// OptinFilter selects accounts by their partner offers opt-in.
type OptinFilter int

const (
	OptinAll OptinFilter = iota
	OptinOptedOut
	OptinOptedIn
)

// ExportFilter combines the export dimensions. CountryID 0 means no country filter.
type ExportFilter struct {
	Audience  Audience
	Optin     OptinFilter
	CountryID uint
	ShopID    *uint
}

// Validate rejects codes outside the known ranges.
func (f ExportFilter) Validate() error {
	if f.Audience < AudienceAll || f.Audience > AudienceNonSubscribers {
		return fmt.Errorf("unknown audience %d", f.Audience)
	}
	if f.Optin < OptinAll || f.Optin > OptinOptedIn {
		return fmt.Errorf("unknown optin filter %d", f.Optin)
	}
	return nil
}

// includesAccounts: every audience except "without account".
func (f ExportFilter) includesAccounts() bool {
	return f.Audience != AudienceWithoutAccount
}

// includesGuests: guests have no address and no opt-in, so any filter on those excludes them.
func (f ExportFilter) includesGuests() bool {
	return (f.Audience == AudienceAll || f.Audience == AudienceWithoutAccount) &&
		(f.Optin == OptinAll || f.Optin == OptinOptedIn) &&
		f.CountryID == 0
}

func (f ExportFilter) customerFilter() repository.CustomerExportFilter {
	cf := repository.CustomerExportFilter{
		Subscribed: f.Audience != AudienceNonSubscribers,
		CountryID:  f.CountryID,
		ShopID:     f.ShopID,
	}
	switch f.Optin {
	case OptinOptedOut:
		optin := false
		cf.Optin = &optin
	case OptinOptedIn:
		optin := true
		cf.Optin = &optin
	}
	return cf
}

// ExportHeader is the fixed column set of every export format.
var ExportHeader = []string{"id", "shop_name", "gender", "lastname", "firstname", "email", "subscribed", "subscribed_on"}

const exportDateLayout = "2006-01-02 15:04:05"

// ExportService collects export rows and serialises them.
type ExportService struct {
	subscribers repository.SubscriberRepository
	customers   repository.CustomerRepository
}

func NewExportService(subscribers repository.SubscriberRepository, customers repository.CustomerRepository) *ExportService {
	return &ExportService{subscribers: subscribers, customers: customers}
}

// Collect runs the queries selected by the filter and concatenates the results
// without de-duplication. An empty result is ErrNoExportRecords.
func (s *ExportService) Collect(ctx context.Context, filter ExportFilter) ([]entity.SubscriberRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var records []entity.SubscriberRecord
	if filter.includesAccounts() {
		customers, err := s.customers.ListForExport(ctx, filter.customerFilter())
		if err != nil {
			return nil, err
		}
		records = append(records, customers...)
	}
	if filter.includesGuests() {
		guests, err := s.subscribers.ListActive(ctx, repository.SubscriberListFilter{ShopID: filter.ShopID})
		if err != nil {
			return nil, err
		}
		records = append(records, guests...)
	}

	if len(records) == 0 {
		return nil, ErrNoExportRecords
	}
	return records, nil
}

func exportRow(r entity.SubscriberRecord) []string {
	subscribed := "0"
	if r.Subscribed {
		subscribed = "1"
	}
	subscribedOn := ""
	if r.SubscribedOn != nil {
		subscribedOn = r.SubscribedOn.Format(exportDateLayout)
	}
	return []string{r.ID, r.ShopName, r.Gender, r.LastName, r.FirstName, r.Email, subscribed, subscribedOn}
}

// WriteCSV writes records as semicolon separated UTF-8 with a header row.
func WriteCSV(w io.Writer, records []entity.SubscriberRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(exportRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same rows as a single sheet workbook.
func WriteXLSX(w io.Writer, records []entity.SubscriberRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(ExportHeader), 18); err != nil {
		return err
	}

	header := make([]interface{}, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range records {
		values := exportRow(r)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportFileName returns the download name for a format.
func ExportFileName(format string) string {
	return "newsletter_export." + format
}

// ParseExportCode parses a numeric filter code, empty meaning 0.
func ParseExportCode(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
