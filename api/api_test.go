// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api_test

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/api"
	"github.com/vechain/metavault/api/registry"
	"github.com/vechain/metavault/api/transfers"
	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/api/vaults"
	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/lvldb"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/test/datagen"
	"github.com/vechain/metavault/test/testchain"
)

var (
	ts        *httptest.Server
	chain     *testchain.Chain
	owner     meta.Address
	validator meta.Address
)

func units(n int64) *big.Int {
	return datagen.Units(n, 1)
}

func TestAPI(t *testing.T) {
	initServer(t)
	defer ts.Close()

	t.Run("getRegistry", testGetRegistry)
	t.Run("getVault", testGetVault)
	t.Run("getVaultNotFound", testGetVaultNotFound)
	t.Run("getBoost", testGetBoost)
	t.Run("getDelegation", testGetDelegation)
	t.Run("getAsset", testGetAsset)
	t.Run("getTransfers", testGetTransfers)
}

// initServer stakes LP, harvests BGT into a queued boost and runs one unwrap, then serves the
// committed state.
func initServer(t *testing.T) {
	g := builtin.DefaultGenesis(datagen.RandAddress())
	g.Rates.LP = units(1)
	var err error
	chain, err = testchain.New(g)
	require.NoError(t, err)
	d := chain.Deployment()
	owner = datagen.RandAddress()
	validator = datagen.RandAddress()
	env := chain.As(owner)

	lp := d.Factories[metavault.ClassBera]
	require.NoError(t, chain.Fund(builtin.LP, owner, units(10)))
	require.NoError(t, lp.Deposit(env, owner, units(10)))
	require.NoError(t, lp.Stake(env, owner, backend.Native, units(10)))
	chain.Mine(10)

	mv := d.Registry.Vault(d.Registry.CalculateAddress(owner))
	_, err = mv.GetReward(chain.As(owner), builtin.LP)
	require.NoError(t, err)
	require.NoError(t, mv.QueueBoost(chain.As(owner), validator, units(4)))

	account := ledger.Account{Owner: owner, Number: meta.DefaultAccountNumber}
	require.NoError(t, chain.Fund(builtin.POL, owner, big.NewInt(100)))
	require.NoError(t, d.Ledger.Deposit(chain.As(owner), account, builtin.MarketPOL, owner, big.NewInt(100)))
	require.NoError(t, d.Pol.Wrap(chain.As(owner), owner, meta.DefaultAccountNumber, big.NewInt(100)))
	_, err = d.Pol.Unwrap(chain.As(owner), owner, meta.DefaultAccountNumber, big.NewInt(40))
	require.NoError(t, err)
	chain.Mine(5)

	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, chain.Commit(db))

	ts = httptest.NewServer(api.New(utils.NewStoreSource(db), d, api.Options{
		EnableMetrics:   true,
		EnableReqLogger: true,
	}))
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func getJSON(t *testing.T, path string, v any) {
	body, status := httpGet(t, ts.URL+path)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, v))
}

func toBig(v *math.HexOrDecimal256) *big.Int {
	return (*big.Int)(v)
}

func assertAmount(t *testing.T, want *big.Int, got *math.HexOrDecimal256) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.String(), toBig(got).String())
}

func testGetRegistry(t *testing.T) {
	var r registry.Registry
	getJSON(t, "/registry", &r)

	assert.Equal(t, chain.Admin(), r.Owner)
	assert.Equal(t, metavault.StandardImplementation, r.Implementation)
	assert.Equal(t, chain.Number(), r.Head)
	assert.Len(t, r.Backends, 3)
	assert.Len(t, r.Factories, len(builtin.Classes))
	assert.Len(t, r.RewardClasses, 3)
	assert.Equal(t, 0, toBig(r.FeePercentage).Sign())
}

func testGetVault(t *testing.T) {
	var v vaults.Vault
	getJSON(t, "/vaults/"+owner.String(), &v)

	assert.Equal(t, owner, v.Account)
	assert.Equal(t, chain.Deployment().Registry.CalculateAddress(owner), v.Address)
	byClass := make(map[string]vaults.Child)
	for _, c := range v.Children {
		byClass[c.Class] = c
	}
	require.Len(t, byClass, 3)
	assertAmount(t, units(10), byClass["bera"].Position)
	assertAmount(t, units(10), byClass["bera"].Underlying)
	assertAmount(t, units(10), byClass["bgt"].Position)
	assertAmount(t, big.NewInt(60), byClass["pol"].Position)
	assertAmount(t, big.NewInt(60), byClass["pol"].Underlying)
}

func testGetVaultNotFound(t *testing.T) {
	_, status := httpGet(t, ts.URL+"/vaults/"+datagen.RandAddress().String())
	assert.Equal(t, http.StatusNotFound, status)
	_, status = httpGet(t, ts.URL+"/vaults/0xnotanaddress")
	assert.Equal(t, http.StatusBadRequest, status)
	_, status = httpGet(t, ts.URL+"/vaults/"+datagen.RandAddress().String()+"/boost")
	assert.Equal(t, http.StatusNotFound, status)
}

func testGetBoost(t *testing.T) {
	var b vaults.Boost
	getJSON(t, "/vaults/"+owner.String()+"/boost", &b)

	assert.Equal(t, validator, b.Validator)
	assertAmount(t, units(4), b.Queued)
	assert.Equal(t, 0, toBig(b.Confirmed).Sign())
	assert.Equal(t, meta.BoostActivationDelay-5, b.BlocksToActivate)
}

func testGetDelegation(t *testing.T) {
	var d vaults.Delegation
	getJSON(t, "/vaults/"+owner.String()+"/delegation", &d)

	assert.True(t, d.Validator.IsZero())
	assert.Equal(t, 0, toBig(d.Confirmed).Sign())
}

func testGetAsset(t *testing.T) {
	var a vaults.Asset
	getJSON(t, "/vaults/"+owner.String()+"/assets/"+builtin.LP.String(), &a)
	assert.Equal(t, "native", a.DefaultBackend)
	assertAmount(t, units(10), a.Staked)
	assert.Equal(t, 0, toBig(a.Custody).Sign())

	getJSON(t, "/vaults/"+owner.String()+"/assets/"+builtin.BGT.String(), &a)
	assert.Equal(t, "none", a.DefaultBackend)
	assertAmount(t, units(10), a.Custody)

	_, status := httpGet(t, ts.URL+"/vaults/"+owner.String()+"/assets/0x12")
	assert.Equal(t, http.StatusBadRequest, status)
}

func testGetTransfers(t *testing.T) {
	var c transfers.Cursors
	getJSON(t, "/transfers", &c)
	assert.Equal(t, transfers.Cursors{Transfer: 1, Consumed: 1}, c)

	var tr transfers.Transfer
	getJSON(t, "/transfers/1", &tr)
	assert.Equal(t, uint64(1), tr.Cursor)
	assert.Equal(t, owner, tr.Owner)
	assertAmount(t, big.NewInt(40), tr.Amount)
	assert.True(t, tr.Settled)

	_, status := httpGet(t, ts.URL+"/transfers/2")
	assert.Equal(t, http.StatusNotFound, status)
	_, status = httpGet(t, ts.URL+"/transfers/first")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNodeHealth(t *testing.T) {
	initServer(t)
	defer ts.Close()

	body, status := httpGet(t, ts.URL+"/node/health")
	require.Equal(t, http.StatusOK, status)
	var res struct {
		Healthy bool   `json:"healthy"`
		Head    uint32 `json:"head"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Healthy)
	assert.Equal(t, chain.Number(), res.Head)
}
