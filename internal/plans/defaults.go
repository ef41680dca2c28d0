package plans

import "recordstack/internal/types"

// Defaults returns the built-in limit sets for the four plan tiers, matching
// the seed migration. Used to bootstrap empty catalogs and as the reference
// fixture in tests.
func Defaults() []*types.Plan {
	return []*types.Plan{
		{
			Name:                   types.PlanFree,
			AllowedNamespaces:      []string{"customer-profiles", "product-catalog"},
			MonthlyAPILimit:        25,
			MaxRecords:             100,
			MaxRecordsPerQuery:     5,
			CanCreateCustomObjects: true,
			MaxCustomObjects:       2,
			MaxFieldsPerObject:     5,
			MaxRecordsPerObject:    100,
			PageSize:               5,
			MaxPageSize:            5,
		},
		{
			Name:                   types.PlanBase,
			AllowedNamespaces:      []string{"customer-profiles", "product-catalog", "order-transactions"},
			MonthlyAPILimit:        1000,
			MaxRecords:             5000,
			MaxRecordsPerQuery:     20,
			CanCreateRecords:       true,
			CanUpdateRecords:       true,
			CanCreateCustomObjects: true,
			MaxCustomObjects:       5,
			MaxFieldsPerObject:     15,
			MaxRecordsPerObject:    1000,
			AllowFilters:           true,
			PageSize:               10,
			MaxPageSize:            20,
		},
		{
			Name:                   types.PlanPro,
			AllowedNamespaces:      []string{"customer-profiles", "product-catalog", "order-transactions", "usage-analytics"},
			MonthlyAPILimit:        10000,
			MaxRecords:             20000,
			MaxRecordsPerQuery:     100,
			CanCreateRecords:       true,
			CanUpdateRecords:       true,
			CanDeleteRecords:       true,
			CanCreateCustomObjects: true,
			MaxCustomObjects:       20,
			MaxFieldsPerObject:     50,
			MaxRecordsPerObject:    10000,
			AllowFilters:           true,
			AllowSorting:           true,
			PageSize:               50,
			MaxPageSize:            100,
		},
		{
			Name:                   types.PlanEnterprise,
			AllowedNamespaces:      []string{types.NamespaceWildcard},
			MonthlyAPILimit:        100000,
			MaxRecords:             100000,
			MaxRecordsPerQuery:     500,
			CanCreateRecords:       true,
			CanUpdateRecords:       true,
			CanDeleteRecords:       true,
			CanCreateCustomObjects: true,
			MaxCustomObjects:       20,
			MaxFieldsPerObject:     50,
			MaxRecordsPerObject:    10000,
			AllowFilters:           true,
			AllowSorting:           true,
			AllowBulkOperations:    true,
			PageSize:               100,
			MaxPageSize:            500,
		},
	}
}
