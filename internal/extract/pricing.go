package extract

import (
	"regexp"
	"strings"

	"github.com/Houeta/rival-radar/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var (
	priceRe   = regexp.MustCompile(`[\$€£¥]\s*([\d,]+(?:\.\d+)?)`)
	freeRe    = regexp.MustCompile(`(?i)\bfree\b`)
	customRe  = regexp.MustCompile(`(?i)\bcustom\b|contact\s+(?:us|sales)|talk\s+to\s+sales`)
	cardRe    = regexp.MustCompile(`(?i)pric|plan|tier|package`)
	billedRe  = regexp.MustCompile(`(?i)billed\s+(annually|monthly|yearly)`)
	perRe     = regexp.MustCompile(`(?i)(?:per\s+|/\s*)(month|mo|year|yr|annum)\b`)
	priceElRe = `[class*="price"], [class*="amount"], [class*="cost"]`
)

// Keywords for fuzzy table-header matching.
var (
	planHeaderKeywords  = []string{"plan", "tier", "package", "bundle", "name", "title"}
	priceHeaderKeywords = []string{"price", "cost", "amount", "fee", "billed", "/mo", "/yr"}
)

// ExtractPricing locates repeated plan-like groupings inside the fragment
// and parses each into a PricingPlan. Tables are tried first, then card-like
// blocks. Fewer than two groups degrades to parsing the whole fragment as a
// single plan.
func ExtractPricing(scope *goquery.Selection) []models.PricingPlan {
	plans := plansFromTables(scope)

	if len(plans) == 0 {
		groups := PlanGroups(scope)
		if len(groups) >= 2 {
			for _, g := range groups {
				// Nameless groups cannot be matched across snapshots.
				if p, ok := ParsePlanGroup(g); ok && p.Name != "" {
					plans = append(plans, p)
				}
			}
		}
		if len(plans) == 0 {
			// Fewer than two plausible groups: treat the whole fragment
			// as a single plan.
			if p, ok := ParsePlanGroup(scope); ok {
				plans = append(plans, p)
			}
		}
	}

	return dedupePlans(plans)
}

// PlanGroups returns candidate card-like blocks whose class names look like
// pricing containers. Wrapper elements with two or more matching direct
// children are skipped so a grid container does not swallow its cards.
func PlanGroups(scope *goquery.Selection) []*goquery.Selection {
	var groups []*goquery.Selection

	scope.Find("div, section, article, li").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if !cardRe.MatchString(class) {
			return
		}

		matchingChildren := 0
		s.Children().Each(func(_ int, c *goquery.Selection) {
			childClass, _ := c.Attr("class")
			if cardRe.MatchString(childClass) {
				matchingChildren++
			}
		})
		if matchingChildren >= 2 {
			return
		}

		groups = append(groups, s)
	})

	return groups
}

// ParsePlanGroup extracts one plan from a single card-like block. The bool
// result is false when the block yields neither a name nor a price.
func ParsePlanGroup(group *goquery.Selection) (models.PricingPlan, bool) {
	plan := models.PricingPlan{
		Tag:     models.TagUnknown,
		Billing: models.BillingUnspecified,
	}

	plan.Name = planName(group)

	priceText := ""
	if el := group.Find(priceElRe).First(); el.Length() > 0 {
		priceText = normalizeLine(el.Text())
	}
	if priceText == "" {
		for _, line := range textLines(group) {
			if LooksLikePrice(line) {
				priceText = line
				break
			}
		}
	}
	if priceText != "" {
		plan.Amount, plan.Tag = ParsePrice(priceText)
	}

	plan.Billing = parseBilling(group.Text())

	group.Find("ul li").Each(func(_ int, li *goquery.Selection) {
		text := normalizeLine(li.Text())
		if text != "" && len(text) < 150 {
			plan.Features = append(plan.Features, text)
		}
	})

	return plan, plan.Name != "" || plan.Tag != models.TagUnknown
}

// ParsePrice classifies one price-bearing text token. Free-tier phrases are
// amount zero with TagFree, never unrecognized. Text with no recognizable
// price yields TagUnknown.
func ParsePrice(text string) (decimal.Decimal, models.PriceTag) {
	if m := priceRe.FindStringSubmatch(text); m != nil {
		amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err == nil {
			return amount, models.TagNormal
		}
	}
	if freeRe.MatchString(text) {
		return decimal.Zero, models.TagFree
	}
	if customRe.MatchString(text) {
		return decimal.Zero, models.TagCustom
	}
	return decimal.Zero, models.TagUnknown
}

// LooksLikePrice reports whether text plausibly carries a price token.
// Free-tier phrases only count on short text so a feature sentence that
// mentions "free" does not hijack the price slot.
func LooksLikePrice(text string) bool {
	if priceRe.MatchString(text) {
		return true
	}
	return len(text) < 20 && (freeRe.MatchString(text) || customRe.MatchString(text))
}

// planName picks the shortest prominent heading-like text inside the group.
func planName(group *goquery.Selection) string {
	name := ""
	group.Find("h1, h2, h3, h4, strong").Each(func(_ int, h *goquery.Selection) {
		text := normalizeLine(h.Text())
		if text == "" || len(text) >= 60 || LooksLikePrice(text) {
			return
		}
		if name == "" || len(text) < len(name) {
			name = text
		}
	})
	if name != "" {
		return name
	}

	// Fallback: first short text line that is not the price.
	for _, line := range textLines(group) {
		if len(line) < 40 && !LooksLikePrice(line) {
			return line
		}
	}
	return ""
}

func parseBilling(text string) models.BillingPeriod {
	if m := billedRe.FindStringSubmatch(text); m != nil {
		if strings.EqualFold(m[1], "monthly") {
			return models.BillingMonthly
		}
		return models.BillingAnnual
	}
	if m := perRe.FindStringSubmatch(text); m != nil {
		switch strings.ToLower(m[1]) {
		case "month", "mo":
			return models.BillingMonthly
		case "year", "yr", "annum":
			return models.BillingAnnual
		}
	}
	return models.BillingUnspecified
}

// plansFromTables parses <table> layouts, matching plan and price columns by
// fuzzy header keywords. Header rows are skipped from data extraction.
func plansFromTables(scope *goquery.Selection) []models.PricingPlan {
	var plans []models.PricingPlan

	scope.Find("table").Each(func(_ int, table *goquery.Selection) {
		planIdx, priceIdx := -1, -1

		table.Find("th").Each(func(i int, th *goquery.Selection) {
			header := strings.ToLower(normalizeLine(th.Text()))
			if planIdx == -1 && containsAny(header, planHeaderKeywords) {
				planIdx = i
			} else if priceIdx == -1 && containsAny(header, priceHeaderKeywords) {
				priceIdx = i
			}
		})

		rows := table.Find("tr")
		headerRowIdx := -1
		if planIdx == -1 && rows.Length() > 0 {
			rows.First().Find("td, th").Each(func(i int, cell *goquery.Selection) {
				header := strings.ToLower(normalizeLine(cell.Text()))
				if containsAny(header, planHeaderKeywords) {
					planIdx = i
					headerRowIdx = 0
				}
				if containsAny(header, priceHeaderKeywords) {
					priceIdx = i
					headerRowIdx = 0
				}
			})
		}

		rows.Each(func(rowNum int, row *goquery.Selection) {
			if rowNum == headerRowIdx {
				return
			}
			// Pure header rows carry column labels, not plans.
			if row.Find("th").Length() > 0 && row.Find("td").Length() == 0 {
				return
			}

			cells := row.Find("td, th")
			if cells.Length() == 0 {
				return
			}

			name, priceText := "", ""
			if planIdx != -1 && cells.Length() > planIdx {
				name = normalizeLine(cells.Eq(planIdx).Text())
			}
			if priceIdx != -1 && cells.Length() > priceIdx {
				priceText = normalizeLine(cells.Eq(priceIdx).Text())
			}

			if name == "" || priceText == "" {
				cells.Each(func(_ int, cell *goquery.Selection) {
					text := normalizeLine(cell.Text())
					if text == "" {
						return
					}
					if priceText == "" && LooksLikePrice(text) {
						priceText = text
					} else if name == "" && len(text) > 2 && len(text) < 50 && !LooksLikePrice(text) {
						name = text
					}
				})
			}

			if name == "" || priceText == "" {
				return
			}

			amount, tag := ParsePrice(priceText)
			plans = append(plans, models.PricingPlan{
				Name:    name,
				Amount:  amount,
				Tag:     tag,
				Billing: parseBilling(row.Text()),
			})
		})
	})

	return plans
}

// dedupePlans collapses plans with the same name and price, keeping the
// first occurrence.
func dedupePlans(plans []models.PricingPlan) []models.PricingPlan {
	seen := make(map[string]struct{}, len(plans))
	unique := make([]models.PricingPlan, 0, len(plans))
	for _, p := range plans {
		key := strings.ToLower(p.Name) + "\x00" + p.Amount.String() + string(p.Tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, p)
	}
	if len(unique) == 0 {
		return nil
	}
	return unique
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// textLines splits a selection's text into trimmed, non-empty lines.
func textLines(s *goquery.Selection) []string {
	var lines []string
	for _, raw := range strings.Split(s.Text(), "\n") {
		if line := normalizeLine(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// normalizeLine collapses inner whitespace and trims one text fragment.
func normalizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
