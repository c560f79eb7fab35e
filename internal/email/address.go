package email

import "strings"

// Address is a single mailbox address.
type Address struct {
	Address string `json:"address"`
}

// addressKind tags the shape an address header was decoded into.
type addressKind int

const (
	addressAbsent addressKind = iota
	addressString
	addressObject
	addressList
)

// AddressField is a From/To value in one of the shapes a parser can hand
// back: a plain string, an object carrying a display text and/or a value
// list, or a bare list of addresses. The zero value is an absent field.
type AddressField struct {
	kind  addressKind
	raw   string
	text  string
	value []Address
}

// NoAddress returns an absent field.
func NoAddress() AddressField {
	return AddressField{}
}

// AddressString wraps an unparsed header value.
func AddressString(s string) AddressField {
	return AddressField{kind: addressString, raw: s}
}

// AddressText is an object that only carries its display text.
func AddressText(text string) AddressField {
	return AddressField{kind: addressObject, text: text}
}

// AddressValues is an object that only carries its decoded address list.
func AddressValues(addrs ...Address) AddressField {
	return AddressField{kind: addressObject, value: addrs}
}

// AddressObject carries both the display text and the decoded list, which
// is what the parser produces for a well-formed header.
func AddressObject(text string, addrs []Address) AddressField {
	return AddressField{kind: addressObject, text: text, value: addrs}
}

// AddressList is a bare list of addresses.
func AddressList(addrs ...Address) AddressField {
	return AddressField{kind: addressList, value: addrs}
}

// AddressListEntries builds a bare list whose entries are either an
// Address or a plain string. A string entry is stored as Address{Address: s},
// so joining it yields the entry itself.
func AddressListEntries(entries ...any) AddressField {
	addrs := make([]Address, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case Address:
			addrs = append(addrs, v)
		case string:
			addrs = append(addrs, Address{Address: v})
		}
	}
	return AddressList(addrs...)
}

// IsAbsent reports whether the header was missing.
func (f AddressField) IsAbsent() bool {
	return f.kind == addressAbsent
}

// Plain returns the raw value for the plain string shape.
func (f AddressField) Plain() (string, bool) {
	return f.raw, f.kind == addressString
}

// Text returns the display text of the object shape.
func (f AddressField) Text() (string, bool) {
	return f.text, f.kind == addressObject
}

// Values returns the decoded addresses of the object shape.
func (f AddressField) Values() ([]Address, bool) {
	return f.value, f.kind == addressObject && f.value != nil
}

// List returns the entries of the bare list shape.
func (f AddressField) List() ([]Address, bool) {
	return f.value, f.kind == addressList
}

// JoinAddresses joins the address of every entry with ", ".
func JoinAddresses(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Address)
	}
	return strings.Join(parts, ", ")
}
