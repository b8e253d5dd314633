package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	FixtureClientId  = "client-greenops"
	FixtureSiteAlpha = "site-alpha"
	FixtureSiteBravo = "site-bravo"
)

// FixtureMonth is the month every fixture record falls in.
var FixtureMonth = MustParseDate("2025-08-01")

// Fixtures is the mock data of the field operations dashboards.
type Fixtures struct {
	Clients []Client
	Sites   []Site
	Records map[string]map[TableKind][]Record
}

func FixtureData() Fixtures {
	alphaDays, bravoDays := 7, 3
	f := Fixtures{
		Clients: []Client{{ID: FixtureClientId, Name: "GreenOps Renewables", IsActive: utils.NewTrue()}},
		Sites: []Site{
			{
				ID: FixtureSiteAlpha, ClientId: FixtureClientId, Name: "Bhadla Solar Park",
				Timezone: "Asia/Kolkata", AllowedEditDays: alphaDays, TotalModules: 1200,
				CapacityKw: decimal.NewFromInt(50000),
			},
			{
				ID: FixtureSiteBravo, ClientId: FixtureClientId, Name: "Pavagada Block C",
				Timezone: "Asia/Kolkata", AllowedEditDays: bravoDays, TotalModules: 800,
				CapacityKw: decimal.NewFromInt(20000),
			},
		},
		Records: make(map[string]map[TableKind][]Record),
	}
	for i, site := range f.Sites {
		f.Records[site.ID] = map[TableKind][]Record{
			TableKindGrassCutting: grassCuttingFixtures(site.ID, i),
			TableKindCleaning:     cleaningFixtures(site.ID, i),
			TableKindGeneration:   generationFixtures(site.ID, i),
		}
	}
	return f
}

func fixtureDays() []time.Time {
	var days []time.Time
	for d := FixtureMonth; d.Month() == FixtureMonth.Month(); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func fixtureId(prefix, siteId string, d time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, siteId, FormatDate(d))
}

func blockName(n int) string {
	return fmt.Sprintf("Block %c", 'A'+rune(n%4))
}

func grassCuttingFixtures(siteId string, seed int) []Record {
	var out []Record
	for i, d := range fixtureDays() {
		planned := int64(10 + (i+seed)%5)
		cut := planned - int64((i+seed)%3)
		values := map[string]Value{
			"block":       TextValue(blockName(i + seed)),
			"inverter":    TextValue(fmt.Sprintf("INV-%02d", 1+(i+seed)%6)),
			"areaPlanned": IntValue(planned),
			"areaCut":     IntValue(cut),
			"workers":     IntValue(int64(4 + i%3)),
		}
		if cut < planned {
			values["remarks"] = TextValue("Rain delay")
		}
		out = append(out, Record{ID: fixtureId("gc", siteId, d), Date: d, Values: values})
	}
	return out
}

func cleaningFixtures(siteId string, seed int) []Record {
	var out []Record
	for i, d := range fixtureDays() {
		planned := int64(40 + 5*((i+seed)%4))
		cleaned := planned - int64(5*((i+seed)%2))
		cleaningType := "Dry"
		if i%3 == 0 {
			cleaningType = "Wet"
		}
		values := map[string]Value{
			"block":          TextValue(blockName(i + seed)),
			"inverter":       TextValue(fmt.Sprintf("INV-%02d", 1+(i+seed)%6)),
			"cleaningType":   TextValue(cleaningType),
			"modulesPlanned": IntValue(planned),
			"modulesCleaned": IntValue(cleaned),
		}
		if cleaningType == "Wet" {
			values["waterUsed"] = IntValue(cleaned * 2)
		}
		// Recleaning after a dust storm: more modules cleaned than planned.
		if i == 14 {
			values["modulesCleaned"] = IntValue(planned * 2)
			values["remarks"] = TextValue("Dust storm recleaning")
		}
		out = append(out, Record{ID: fixtureId("cl", siteId, d), Date: d, Values: values})
	}
	return out
}

func generationFixtures(siteId string, seed int) []Record {
	var out []Record
	for i, d := range fixtureDays() {
		export := decimal.NewFromInt(int64(180000 + 1500*((i*7+seed)%11)))
		values := map[string]Value{
			"meter":       TextValue(fmt.Sprintf("MTR-%d", 1+(i+seed)%2)),
			"exportKwh":   NumberValue(export),
			"importKwh":   NumberValue(decimal.NewFromInt(int64(120 + (i*3)%40))),
			"peakKw":      NumberValue(decimal.NewFromInt(int64(42000 + 250*((i+seed)%9)))),
			"irradiance":  NumberValue(decimal.New(int64(520+(i*13)%140), -2)),
			"readingDate": DateValue(d.AddDate(0, 0, 1)),
		}
		if i%10 == 4 {
			values["outageStart"] = TextValue("13:10")
			values["outageEnd"] = TextValue("14:25")
			values["remarks"] = TextValue("Grid outage")
		}
		out = append(out, Record{ID: fixtureId("gen", siteId, d), Date: d, Values: values})
	}
	return out
}

// SeedFixtures loads the fixture sites and records into a memory store.
func SeedFixtures(store *MemoryStore) error {
	data := FixtureData()
	store.mu.Lock()
	for i := range data.Sites {
		site := data.Sites[i]
		store.sites[site.ID] = &site
	}
	store.mu.Unlock()
	for siteId, tables := range data.Records {
		for kind, records := range tables {
			if err := store.Insert(siteId, kind, records...); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewFixtureStore returns a memory store holding the fixtures.
func NewFixtureStore() (*MemoryStore, error) {
	store := NewMemoryStore()
	if err := SeedFixtures(store); err != nil {
		return nil, err
	}
	return store, nil
}

// SeedFixturesDB upserts the fixtures into the database. Existing rows with
// the fixture ids are overwritten.
func SeedFixturesDB(ctx context.Context, db *gorm.DB) error {
	data := FixtureData()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{UpdateAll: true})
		if err := upsert.Create(&data.Clients).Error; err != nil {
			return err
		}
		if err := upsert.Create(&data.Sites).Error; err != nil {
			return err
		}
		for _, site := range data.Sites {
			for kind, records := range data.Records[site.ID] {
				rows := make([]OperationRecord, 0, len(records))
				for _, r := range records {
					rows = append(rows, OperationRecord{
						ID:       r.ID,
						ClientId: site.ClientId,
						SiteId:   site.ID,
						Kind:     kind,
						Date:     r.Date,
						Values:   RecordValues(r.Values),
					})
				}
				if err := upsert.CreateInBatches(&rows, 100).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
