package validator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ValidatorTestSuite struct {
	suite.Suite
}

func (s *ValidatorTestSuite) SetupTest() {
}

func (s *ValidatorTestSuite) TearDownTest() {
}

func (s *ValidatorTestSuite) SetupSuite() {
}

func (s *ValidatorTestSuite) TearDownSuite() {
}

func (s *ValidatorTestSuite) TestIsValidAddress() {
	tests := []struct {
		desc       string
		address    string
		expIsValid bool
	}{
		{
			desc:       "invalid address",
			address:    "0x000",
			expIsValid: false,
		},
		{
			desc:       "valid address - real address",
			address:    "0x939ae6A4C8dfDBB1f7085189574F0A938013952A",
			expIsValid: true,
		},
		{
			desc:       "valid address - lower case",
			address:    "0x939ae6a4c8dfdbb1f7085189574f0a938013952b",
			expIsValid: true,
		},
	}
	for _, t := range tests {
		s.Equal(t.expIsValid, IsValidAddress(t.address), t.desc)
	}
}

func (s *ValidatorTestSuite) TestTags() {
	v := NewCustomValidator(New())
	type params struct {
		Owner  string `validate:"required,address"`
		Amount string `validate:"omitempty,amount"`
	}
	tests := []struct {
		desc   string
		in     params
		expErr bool
	}{
		{
			desc: "valid",
			in:   params{Owner: "0x939ae6a4c8dfdbb1f7085189574f0a938013952b", Amount: "1.25"},
		},
		{
			desc: "amount omitted",
			in:   params{Owner: "0x939ae6a4c8dfdbb1f7085189574f0a938013952b"},
		},
		{
			desc:   "bad address",
			in:     params{Owner: "0x000", Amount: "1"},
			expErr: true,
		},
		{
			desc:   "negative amount",
			in:     params{Owner: "0x939ae6a4c8dfdbb1f7085189574f0a938013952b", Amount: "-1"},
			expErr: true,
		},
		{
			desc:   "not a number",
			in:     params{Owner: "0x939ae6a4c8dfdbb1f7085189574f0a938013952b", Amount: "one"},
			expErr: true,
		},
	}
	for _, t := range tests {
		err := v.Validate(t.in)
		s.Equal(t.expErr, err != nil, t.desc)
	}
}

func TestValidatorTestSuite(t *testing.T) {
	suite.Run(t, new(ValidatorTestSuite))
}
