// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vaults

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

type Vaults struct {
	src utils.Source
	d   *builtin.Deployment
}

func New(src utils.Source, d *builtin.Deployment) *Vaults {
	return &Vaults{src, d}
}

// open resolves the MetaVault of the account path variable. Accounts without a vault are not found.
func (v *Vaults) open(req *http.Request) (*xenv.Environment, meta.Address, *metavault.MetaVault, error) {
	account, err := utils.AddressVar(req, "account")
	if err != nil {
		return nil, meta.Address{}, nil, err
	}
	env, err := utils.Env(v.src)
	if err != nil {
		return nil, meta.Address{}, nil, err
	}
	addr, err := v.d.Registry.VaultOf(env, account)
	if err != nil {
		return nil, meta.Address{}, nil, err
	}
	if addr.IsZero() {
		return nil, meta.Address{}, nil, utils.NotFound(fmt.Errorf("no metavault for %v", account))
	}
	return env, account, v.d.Registry.Vault(addr), nil
}

func (v *Vaults) handleGetVault(w http.ResponseWriter, req *http.Request) error {
	env, account, mv, err := v.open(req)
	if err != nil {
		return err
	}
	res := &Vault{Account: account, Address: mv.Address(), Children: []Child{}}
	for _, c := range builtin.Classes {
		f := v.d.Factories[c.Class]
		child, err := f.VaultOf(env, account)
		if err != nil {
			return err
		}
		if child.IsZero() {
			continue
		}
		position, err := f.Position(env, account)
		if err != nil {
			return err
		}
		underlying, err := f.UnderlyingBalance(env, account)
		if err != nil {
			return err
		}
		res.Children = append(res.Children, Child{
			Class:      string(c.Class),
			Asset:      c.Asset,
			Address:    child,
			Position:   hex(position),
			Underlying: hex(underlying),
		})
	}
	return utils.WriteJSON(w, res)
}

func (v *Vaults) handleGetBoost(w http.ResponseWriter, req *http.Request) error {
	env, _, mv, err := v.open(req)
	if err != nil {
		return err
	}
	rec, err := mv.BoostRecord(env)
	if err != nil {
		return err
	}
	left, err := mv.BlocksToActivate(env)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertBoost(rec, left))
}

func (v *Vaults) handleGetDelegation(w http.ResponseWriter, req *http.Request) error {
	env, _, mv, err := v.open(req)
	if err != nil {
		return err
	}
	rec, err := mv.DelegationRecord(env)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertDelegation(rec))
}

func (v *Vaults) handleGetAsset(w http.ResponseWriter, req *http.Request) error {
	env, _, mv, err := v.open(req)
	if err != nil {
		return err
	}
	asset, err := utils.AddressVar(req, "asset")
	if err != nil {
		return err
	}
	tag, err := mv.DefaultBackend(env, asset)
	if err != nil {
		return err
	}
	staked, err := mv.StakedBalance(env, asset)
	if err != nil {
		return err
	}
	custody, err := token.New(meta.TokenAddress, env.State()).BalanceOf(asset, mv.Address())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Asset{
		Asset:          asset,
		DefaultBackend: tag.String(),
		Staked:         hex(staked),
		Custody:        hex(custody),
	})
}

func (v *Vaults) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{account}").
		Methods(http.MethodGet).
		Name("vaults_get_vault").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetVault))
	sub.Path("/{account}/boost").
		Methods(http.MethodGet).
		Name("vaults_get_boost").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetBoost))
	sub.Path("/{account}/delegation").
		Methods(http.MethodGet).
		Name("vaults_get_delegation").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetDelegation))
	sub.Path("/{account}/assets/{asset}").
		Methods(http.MethodGet).
		Name("vaults_get_asset").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetAsset))
}
