package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/greenops/fieldops_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

func redisListKey[T any](scope string) string {
	if scope == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + scope
}

func redisItemKey[T any](id string) string {
	return GetTypeName[T]() + ":" + id
}

// store instance
func StoreRedis[T any](obj *T, id string) error {
	return config.SetRedisObject(redisItemKey[T](id), obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id string) (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(redisItemKey[T](id), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// store a list under TypeList:$scope
func StoreRedisList[T any](obj []*T, scope string) error {
	return config.SetRedisObject(redisListKey[T](scope), obj, GetCacheLifespan())
}

// retrieve a list.
// returns nil if does not exist
func RetrieveRedisList[T any](scope string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(redisListKey[T](scope), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// clear list, TypeList:$scope
func RemoveRedisList[T any](scope string) error {
	return config.RemoveRedisKey(redisListKey[T](scope))
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id string) error {
	return config.RemoveRedisKey(redisItemKey[T](id))
}
