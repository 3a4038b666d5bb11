package statemap

import (
	"regexp"

	"github.com/rotisserie/eris"
)

// Initiative is one selectable dataset: its attribute column code, the base
// colour of its ramp and the markdown highlight text shown next to the map.
type Initiative struct {
	Name        string `yaml:"name" json:"name"`
	Code        string `yaml:"code" json:"code"`
	Color       string `yaml:"color" json:"color"`
	Description string `yaml:"description" json:"description"`
}

// DashboardTitle and DashboardHeadline head the index page.
const (
	DashboardTitle    = "State-Level Initiative Dashboard"
	DashboardHeadline = "H1 2025 saw GA MX driving 8 high-impact initiatives across state governments. Here is what we achieved."
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// InitiativeTable is an ordered set of initiatives.
type InitiativeTable struct {
	items  []Initiative
	byCode map[string]int
	byName map[string]int
}

// NewInitiativeTable validates and indexes the given initiatives.
func NewInitiativeTable(items []Initiative) (*InitiativeTable, error) {
	t := &InitiativeTable{
		items:  make([]Initiative, 0, len(items)),
		byCode: make(map[string]int, len(items)),
		byName: make(map[string]int, len(items)),
	}
	for i, it := range items {
		if it.Code == "" {
			return nil, eris.Errorf("initiative[%d] (%q): code is required", i, it.Name)
		}
		if it.Name == "" {
			return nil, eris.Errorf("initiative[%d] (%s): name is required", i, it.Code)
		}
		if !hexColorPattern.MatchString(it.Color) {
			return nil, eris.Errorf("initiative %s: color %q is not #RRGGBB", it.Code, it.Color)
		}
		if _, dup := t.byCode[it.Code]; dup {
			return nil, eris.Errorf("initiative %s: duplicate code", it.Code)
		}
		t.byCode[it.Code] = len(t.items)
		t.byName[it.Name] = len(t.items)
		t.items = append(t.items, it)
	}
	return t, nil
}

// DefaultInitiatives returns the built-in table.
func DefaultInitiatives() *InitiativeTable {
	t, err := NewInitiativeTable(defaultInitiatives)
	if err != nil {
		panic(err)
	}
	return t
}

// List returns the initiatives in declaration order.
func (t *InitiativeTable) List() []Initiative {
	out := make([]Initiative, len(t.items))
	copy(out, t.items)
	return out
}

// Len returns the number of initiatives.
func (t *InitiativeTable) Len() int { return len(t.items) }

// ByCode looks an initiative up by its column code.
func (t *InitiativeTable) ByCode(code string) (Initiative, bool) {
	i, ok := t.byCode[code]
	if !ok {
		return Initiative{}, false
	}
	return t.items[i], true
}

// ByName looks an initiative up by its display name.
func (t *InitiativeTable) ByName(name string) (Initiative, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Initiative{}, false
	}
	return t.items[i], true
}

var defaultInitiatives = []Initiative{
	{
		Name:  "Initiative 1: Women Experts & Gender Guide",
		Code:  "i1",
		Color: "#800080",
		Description: `#### Women Experts & Gender Guide

> DiDi sets an example in launching the first mobility guide with a gender perspective by a digital platform in Mexico, opening new opportunities for engagement with stakeholders such as Women's Ministries and the Secretary of Government.

**Key figures:**
- 1 Federal Guide + 3 State Guides finalized MTY, GDL, QROO + 3 in the making CDMX, MOR, EDOMEX
- 14 new different stakeholders engaged
`,
	},
	{
		Name:  "Initiative 2: DiDigitalízate",
		Code:  "i2",
		Color: "#FFA500",
		Description: `#### DiDigitalízate

> DiDigitalízate is a free, eight-week online training program offered by DiDi Food, consisting of a quick, 20 hour training for Small and Medium Businesses to support the business and boosting our Advocacy with Local stakeholders.

**Key figures:**
- 8 modules covering topics such as digital marketing, sustainable business models, business diagnostics, sanitation best practices, and hospitality sales skills, among others
- 8 key partners: COPARMEX, CANIRAC, CONCANACO, NAFIN, Universidad Anáhuac, Ulinea and local governments
- 3297 Restaurants engaged so far
- 14 States engaged by 2025
- 1 Senate forum with legislators and chamber presidents to talk about digital tools for SMEs
`,
	},
	{
		Name:  "Initiative 3: EVs",
		Code:  "i3",
		Color: "#228B22",
		Description: `#### EVs

> DiDi's initiatives in the EV sector position us as a key Sustainability leader in Mexico, with a unique innovation agenda to discuss with government officials from Federal & Local levels.

**Key figures:**
- 2 Federal authorities reached: Ing. Mauricio Montesinos, Head of Office of the Director of Basic Electrical Supply, & Ing. Víctor Arellano, Senior Manager at Programa de Ahorro de Energía del Sector Eléctrico (PAESE), both middle-level public servants at CFE
- 1 State with a fixed innovation project: Nuevo León (in negotiations to exchange mobility fund for vehicle acquisition)
`,
	},
	{
		Name:  "Initiative 4: C5",
		Code:  "i4",
		Color: "#1E90FF",
		Description: `#### C5

> By providing access to trip data (vehicle plates, model, color, cellphone numbers, names of DRV + PAX, and locations) and connecting to emergency networks like C5/Emergency Portals, DiDi aids authorities in responding more quickly to incidents and monitoring high-risk areas in real-time.

**Key figures:**
- Announced in: AGS, SON, JAL, NL, BCS
- 4 WIP (CDMX, COAH, MOR, EDOMEX)
- 4 Events in H1
`,
	},
	{
		Name:  "Initiative 5: Trip Donation",
		Code:  "i5",
		Color: "#FF69B4",
		Description: `#### Trip Donation

> DiDi demonstrates its commitment to cooperating with public authorities and law enforcement by enabling Trips donations to women in vulnerable situations to safely access justice centers and support services at no cost, facilitating city-level partnerships.

**Key figures:**
- 6 City-level partnerships
- 4000 (NL, CUU, BC, ZAC) Total trips donated
- 6 WIPs
`,
	},
	{
		Name:  "Initiative 6: Business Chambers",
		Code:  "i6",
		Color: "#8B4513",
		Description: `#### Business Chambers

> Chambers advocate for fair and clear regulations, assisting DiDi in navigating local laws to avoid operational disruptions while enhancing its reputation as a relevant ally within the private sector.

**Key figures:**
- 42 Partnerships achieved in states
- 8 Events, Webinars and Chamber Forums: ABAUSTUR, COPARMEX International SME Fair, ANPEC collaboration
`,
	},
	{
		Name:  "Initiative 7: PTP Taxi",
		Code:  "i7",
		Color: "#FFD300",
		Description: `#### PTP Taxi

> New launches, and PTP Taxi is helping create a win-win scenario with mobility authorities by providing technology and a safer, more accessible alternative to the traditional public transportation system.

**Key figures:**
- 3 Mkts Launch with GA support
- 1 Governor-level event in Querétaro
- 10+ Taxi leaders engaged
`,
	},
	{
		Name:  "Initiative 8: Moto",
		Code:  "i8",
		Color: "#800020",
		Description: `#### Moto

> As one of the most controversial transport alternatives, our goal is to position moto hailing as an inclusive and accessible transportation option, particularly in underserved areas, and shield the product ahead of strong regulatory prohibitions.

**Key figures:**
- 5 markets launched so far
- 8 Rumbo Seguro's events in CDMX and EDOMEX
- 1,500 couriers and drivers engaged
- 198 Moto GR + 5 Grasstops - CDMX
- 60 Moto GR - GDL + 2 Grasstops - GDL
`,
	},
	{
		Name:  "Initiative 9: Grassroots",
		Code:  "i9",
		Color: "#FFA500",
		Description: `#### Grassroots

> Bottom-up movements legitimizing social impact of digital platforms in the country, that contribute to support Federal + local regulations, Taxi, Launches, and business initiatives, while building trust among communities.

**Key figures:**
- 40 communities engaged
- 16/32 States with allied communities
- +1400 Total GR engaged MX
`,
	},
}
