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

package data

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
)

type MongoTestSuite struct {
	baseTestSuite
	uri string
}

func (suite *MongoTestSuite) SetupTest() {
	var err error
	suite.Database, err = Open(suite.uri, "recsys_")
	suite.Require().NoError(err)
	// start from empty collections
	database := suite.Database.(*MongoDB)
	suite.Require().NoError(database.client.Database(database.dbName).Drop(context.Background()))
	suite.NoError(suite.Database.Init())
}

func (suite *MongoTestSuite) TearDownTest() {
	suite.NoError(suite.Database.Close())
}

func TestMongo(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI is not set")
	}
	suite.Run(t, &MongoTestSuite{uri: uri})
}
