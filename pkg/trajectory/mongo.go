package trajectory

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/evdisplay/pkg/errors"
)

// DefaultMongoDatabase is used when the URI names no database.
const DefaultMongoDatabase = "evdisplay"

const mongoConnectTimeout = 10 * time.Second

// MongoSource reads track documents from the trk collection. Each
// document carries the trk fields as top-level keys.
type MongoSource struct {
	uri    string
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoTrack struct {
	EventID  int64     `bson:"evtID"`
	TrackID  int64     `bson:"trackTID"`
	ParentID int64     `bson:"trackPID"`
	PDG      int32     `bson:"trackPDG"`
	KinE     float64   `bson:"trackKinE"`
	NPoints  int       `bson:"trackNPoints"`
	X        []float64 `bson:"trackPointX"`
	Y        []float64 `bson:"trackPointY"`
	Z        []float64 `bson:"trackPointZ"`
}

// OpenMongo connects to uri (mongodb://host/database) and checks that the
// trk collection exists.
func OpenMongo(ctx context.Context, uri string) (*MongoSource, error) {
	db := mongoDatabase(uri)
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "connect %s", redactURI(uri))
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "connect %s", redactURI(uri))
	}

	names, err := client.Database(db).ListCollectionNames(cctx, bson.D{{Key: "name", Value: Table}})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "list collections of %s", db)
	}
	if len(names) == 0 {
		client.Disconnect(context.Background())
		return nil, errors.New(errors.ErrCodeDataSource, "database %s has no %q collection", db, Table)
	}
	return &MongoSource{uri: uri, client: client, coll: client.Database(db).Collection(Table)}, nil
}

func mongoDatabase(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDatabase
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return DefaultMongoDatabase
}

func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "mongodb"
	}
	return u.Redacted()
}

func (s *MongoSource) Name() string { return redactURI(s.uri) }

// EventIDs lists the distinct event ids using the server's distinct command.
func (s *MongoSource) EventIDs(ctx context.Context) ([]int64, error) {
	vals, err := s.coll.Distinct(ctx, FieldEvent, bson.D{})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		switch n := v.(type) {
		case int32:
			ids = append(ids, int64(n))
		case int64:
			ids = append(ids, n)
		case float64:
			ids = append(ids, int64(n))
		default:
			return nil, fmt.Errorf("unexpected %s type %T", FieldEvent, v)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MongoSource) Scan(ctx context.Context, fn func(*Record) error) error {
	return s.find(ctx, bson.D{}, fn)
}

func (s *MongoSource) ScanEvent(ctx context.Context, id int64, fn func(*Record) error) error {
	return s.find(ctx, bson.D{{Key: FieldEvent, Value: id}}, fn)
}

func (s *MongoSource) find(ctx context.Context, filter bson.D, fn func(*Record) error) error {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc mongoTrack
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		r := Record(doc)
		if err := fn(&r); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *MongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
