package models

import "testing"

func TestContractID(t *testing.T) {
	got := ContractID("80001", "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	want := "80001::0xabcdef0123456789abcdef0123456789abcdef01"
	if got != want {
		t.Fatalf("ContractID = %q, want %q", got, want)
	}
}

func TestContractIDRoundTrip(t *testing.T) {
	c := &Contract{ID: ContractID("137", "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")}
	if c.ChainID() != "137" {
		t.Fatalf("ChainID() = %q, want 137", c.ChainID())
	}
	if c.Address() != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("Address() = %q", c.Address())
	}
}

func TestContractIDMalformed(t *testing.T) {
	c := &Contract{ID: "no-separator"}
	if c.ChainID() != "no-separator" {
		t.Fatalf("ChainID() = %q", c.ChainID())
	}
	if c.Address() != "" {
		t.Fatalf("Address() = %q, want empty", c.Address())
	}
}
