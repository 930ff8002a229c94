package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/service/query"
)

func TestStatusOf(t *testing.T) {
	req := require.New(t)
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{xerrors.Errorf("proposal 3: %w", domain.ErrNoSuchProposal), http.StatusNotFound},
		{query.ErrNotFound, http.StatusNotFound},
		{domain.ErrAuctionAlreadyActive, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrBadParamInput, http.StatusBadRequest},
		{domain.ErrNotImplemented, http.StatusNotImplemented},
		{xerrors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		req.Equal(c.want, StatusOf(c.err, http.StatusInternalServerError), c.err.Error())
	}
}

func TestMakeJsonResp(t *testing.T) {
	req := require.New(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	req.NoError(MakeJsonResp(c, http.StatusInternalServerError, domain.ErrNoSuchProposal))
	req.Equal(http.StatusNotFound, rec.Code)

	var resp JsonResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal(JsonResponseStatusFail, resp.Status)
	req.Equal(domain.ErrNoSuchProposal.Error(), resp.Data)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	req.NoError(MakeJsonResp(c, http.StatusOK, map[string]int{"n": 1}))
	req.Equal(http.StatusOK, rec.Code)
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal(JsonResponseStatusSuccess, resp.Status)
}
