package services

import jsoniter "github.com/json-iterator/go"

// json is shared by every collaborator client in this package.
var json = jsoniter.ConfigCompatibleWithStandardLibrary
