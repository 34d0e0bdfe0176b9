// Copyright 2026 recsys Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"encoding/json"
	"reflect"

	"github.com/projecthub/recsys/common/log"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Lr           ParamName = "Lr"           // learning rate
	NEpochs      ParamName = "NEpochs"      // number of epochs
	NFactors     ParamName = "NFactors"     // dimension of id embeddings and tower outputs
	RandomState  ParamName = "RandomState"  // random state (seed)
	HiddenLayers ParamName = "HiddenLayers" // widths of hidden layers in tower networks
	TagDim       ParamName = "TagDim"       // dimension of tag embeddings
	LangDim      ParamName = "LangDim"      // dimension of language embeddings
	BatchSize    ParamName = "BatchSize"    // number of users per training batch
)

// Params stores hyper-parameters for an model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for the
// twin tower model is given by:
//
//	model.Params{
//		model.Lr:           0.01,
//		model.NEpochs:      10,
//		model.NFactors:     64,
//		model.HiddenLayers: []int{64},
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "int"),
				zap.String("actual_type", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "int64"),
				zap.String("actual_type", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

// GetFloat32 gets a float32 parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "float32"),
				zap.String("actual_type", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

// GetIntSlice gets a list of integers by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetIntSlice(name ParamName, _default []int) []int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []int:
			return val
		case []int64:
			ret := make([]int, len(val))
			for i := range val {
				ret[i] = int(val[i])
			}
			return ret
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect_type", "[]int"),
				zap.String("actual_type", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// Overwrite returns the merge of two parameter sets. Values in params win.
func (parameters Params) Overwrite(params Params) Params {
	merged := make(Params)
	for k, v := range parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Fatal("failed to marshal params", zap.Error(err))
	}
	return string(b)
}
