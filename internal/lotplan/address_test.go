package lotplan

import "testing"

func TestParseAddresses_FullLine(t *testing.T) {
	got := ParseAddresses(`"Glenview" 145 Old Gympie Road, Caboolture, QLD 4510`)
	if len(got) != 1 {
		t.Fatalf("expected one address, got %d", len(got))
	}
	a := got[0]
	if a.PropertyName != "Glenview" {
		t.Fatalf("property name: %q", a.PropertyName)
	}
	if a.HouseNumber == nil || *a.HouseNumber != 145 {
		t.Fatalf("house number: %v", a.HouseNumber)
	}
	if a.Street != "OLD GYMPIE" || a.Suffix != "ROAD" {
		t.Fatalf("street parts: %q %q", a.Street, a.Suffix)
	}
	if a.Suburb != "CABOOLTURE" || a.State != "QLD" {
		t.Fatalf("locality parts: %q %q", a.Suburb, a.State)
	}
	if a.Postcode == nil || *a.Postcode != 4510 {
		t.Fatalf("postcode: %v", a.Postcode)
	}
}

func TestParseAddresses_NoCommaBeforeState(t *testing.T) {
	got := ParseAddresses("12 Example Street, Brisbane QLD 4000")
	if len(got) != 1 {
		t.Fatalf("expected one address, got %d", len(got))
	}
	a := got[0]
	if a.Suburb != "BRISBANE" || a.State != "QLD" {
		t.Fatalf("locality parts: %q %q", a.Suburb, a.State)
	}
	if a.HouseNumber == nil || *a.HouseNumber != 12 {
		t.Fatalf("house number: %v", a.HouseNumber)
	}
}

func TestParseAddresses_SkipsNonAddressLines(t *testing.T) {
	text := "CONTRACT OF SALE\n\nsome preamble text\n4 Short St, Dalby, QLD\nmore text"
	got := ParseAddresses(text)
	if len(got) != 1 {
		t.Fatalf("expected one address, got %d", len(got))
	}
	if got[0].Suburb != "DALBY" {
		t.Fatalf("suburb: %q", got[0].Suburb)
	}
	if got[0].Original != "4 Short St, Dalby, QLD" {
		t.Fatalf("original: %q", got[0].Original)
	}
}

func TestParseAddresses_EmptyText(t *testing.T) {
	if got := ParseAddresses("   \n\n  "); len(got) != 0 {
		t.Fatalf("expected none, got %d", len(got))
	}
}
