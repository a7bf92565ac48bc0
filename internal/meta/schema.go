package meta

import (
	"fmt"

	"github.com/nucleus/doris-core/internal/ddl"
)

// Default target tables.
const (
	DefaultTableTarget     = "meta_table"
	DefaultPartitionTarget = "meta_partition"
	DefaultTabletTarget    = "meta_tablet"
)

const tableColumns = "" +
	"  `database_name` varchar(64) NULL COMMENT \"database name\",\n" +
	"  `table_name` varchar(128) NULL COMMENT \"table name\",\n" +
	"  `table_type` varchar(64) NULL COMMENT \"BASE TABLE, VIEW\",\n" +
	"  `engine` varchar(64) NULL COMMENT \"OLAP and others\",\n" +
	"  `model` varchar(20) NULL COMMENT \"AGGREGATE, UNIQUE, DUPLICATE\",\n" +
	"  `replication_num` int NULL,\n" +
	"  `bucket_num` int NULL,\n" +
	"  `properties` text NULL COMMENT \"properties as json\",\n" +
	"  `ddl` text NULL COMMENT \"create statement\",\n" +
	"  `update_time` datetime NULL\n"

const partitionColumns = "" +
	"  `database_name` varchar(64) NULL,\n" +
	"  `table_name` varchar(128) NULL,\n" +
	"  `PartitionId` bigint(20) NULL,\n" +
	"  `PartitionName` varchar(128) NULL,\n" +
	"  `VisibleVersion` int(11) NULL,\n" +
	"  `VisibleVersionTime` datetime NULL,\n" +
	"  `State` varchar(64) NULL,\n" +
	"  `PartitionKey` varchar(64) NULL,\n" +
	"  `Range` varchar(500) NULL,\n" +
	"  `DistributionKey` varchar(2046) NULL,\n" +
	"  `Buckets` int(11) NULL,\n" +
	"  `ReplicationNum` int(11) NULL,\n" +
	"  `StorageMedium` varchar(64) NULL,\n" +
	"  `CooldownTime` datetime NULL,\n" +
	"  `LastConsistencyCheckTime` datetime NULL,\n" +
	"  `DataSize` varchar(64) NULL,\n" +
	"  `IsInMemory` varchar(8) NULL,\n" +
	"  `ReplicaAllocation` varchar(64) NULL,\n" +
	"  `update_time` datetime NULL\n"

const tabletColumns = "" +
	"  `database_name` varchar(64) NULL,\n" +
	"  `table_name` varchar(128) NULL,\n" +
	"  `TabletId` bigint(20) NULL,\n" +
	"  `ReplicaId` bigint(20) NULL,\n" +
	"  `BackendId` bigint(20) NULL,\n" +
	"  `SchemaHash` bigint(20) NULL,\n" +
	"  `Version` bigint(20) NULL,\n" +
	"  `LstSuccessVersion` bigint(20) NULL,\n" +
	"  `LstFailedVersion` bigint(20) NULL,\n" +
	"  `LstFailedTime` datetime NULL,\n" +
	"  `DataSize` bigint(20) NULL,\n" +
	"  `RowCount` bigint(20) NULL,\n" +
	"  `State` varchar(64) NULL,\n" +
	"  `LstConsistencyCheckTime` datetime NULL,\n" +
	"  `CheckVersion` bigint(20) NULL,\n" +
	"  `VersionCount` bigint(20) NULL,\n" +
	"  `PathHash` bigint(20) NULL,\n" +
	"  `MetaUrl` varchar(500) NULL,\n" +
	"  `CompactionStatus` varchar(500) NULL,\n" +
	"  `update_time` datetime NULL\n"

// createStatement renders a single-bucket OLAP table holding harvested rows.
func createStatement(database, name, columns, comment, duplicateKey string, replication int) string {
	s := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s) ENGINE=OLAP\n", ddl.Qualified(database, name), columns)
	if duplicateKey != "" {
		s += fmt.Sprintf("DUPLICATE KEY(%s)\n", ddl.Quote(duplicateKey))
	}
	s += fmt.Sprintf("COMMENT %q\n", comment)
	s += "DISTRIBUTED BY HASH(`table_name`) BUCKETS 1\n"
	s += fmt.Sprintf("PROPERTIES (\n\"replication_allocation\" = \"tag.location.default: %d\",\n\"in_memory\" = \"false\"\n)", replication)
	return s
}
