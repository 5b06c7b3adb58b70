package doctype

// DefaultTypes is the built-in reference list used when no reference data
// file is configured.
var DefaultTypes = []Type{
	{
		Code:         "childcare_leave_order",
		Title:        "Приказ о предоставлении отпуска по уходу за ребенком",
		Aliases:      []string{"приказ об отпуске по уходу за ребенком", "childcare leave order", "декретный отпуск"},
		ValidityDays: 365,
	},
	{
		Code:    "pregnancy_certificate",
		Title:   "Справка о беременности",
		Aliases: []string{"справка о постановке на учет по беременности", "pregnancy certificate"},
	},
	{
		Code:         "military_service_certificate",
		Title:        "Справка о прохождении срочной воинской службы",
		Aliases:      []string{"справка из военкомата", "military service certificate"},
		ValidityDays: 180,
	},
	{
		Code:         "disability_certificate",
		Title:        "Справка об инвалидности",
		Aliases:      []string{"справка мсэ", "disability certificate"},
		ValidityDays: 365,
	},
	{
		Code:    "sick_leave_certificate",
		Title:   "Лист временной нетрудоспособности",
		Aliases: []string{"больничный лист", "sick leave"},
	},
	{
		Code:    "unemployment_certificate",
		Title:   "Справка о регистрации в качестве безработного",
		Aliases: []string{"справка безработного", "unemployment certificate"},
	},
	{
		Code:    "employment_termination_order",
		Title:   "Приказ о расторжении трудового договора",
		Aliases: []string{"приказ об увольнении", "termination order"},
	},
}

// Default returns the catalog built from DefaultTypes.
func Default() *Catalog {
	return NewCatalog(DefaultTypes, 0)
}
